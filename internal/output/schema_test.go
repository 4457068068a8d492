package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalField_SpellingsConverge(t *testing.T) {
	for _, spelling := range []string{"user_id", "userId", "UserID", "user-id", "User Id"} {
		assert.Equal(t, "user_id", CanonicalField(spelling), "spelling %q", spelling)
	}
}

func TestCanonicalField_InitialismRuns(t *testing.T) {
	assert.Equal(t, "http_server", CanonicalField("HTTPServer"))
	assert.Equal(t, "api_key", CanonicalField("APIKey"))
	assert.Equal(t, "created_at", CanonicalField("createdAt"))
}

func TestCanonicalField_Degenerate(t *testing.T) {
	assert.Equal(t, "", CanonicalField("  "))
	assert.Equal(t, "x", CanonicalField("x"))
	assert.Equal(t, "a_b", CanonicalField("__a__b__"))
}

func TestCanonicalType_Aliases(t *testing.T) {
	assert.Equal(t, CanonicalType("int"), CanonicalType("integer"))
	assert.Equal(t, CanonicalType("str"), CanonicalType("string"))
	assert.Equal(t, CanonicalType("bool"), CanonicalType("boolean"))
	assert.Equal(t, CanonicalType("float64"), CanonicalType("double"))
	assert.NotEqual(t, CanonicalType("integer"), CanonicalType("string"))
}

func TestSchemaFields_KeepsFirstSpelling(t *testing.T) {
	o := AgentOutput{
		AgentID: "agent-a",
		Schema:  map[string]string{"userId": "string", "user_id": "string", "email": "string"},
	}

	fields := SchemaFields(&o)

	assert.Len(t, fields, 2)
	assert.Equal(t, "userId", fields["user_id"], "lexicographically first spelling wins")
	assert.Equal(t, "email", fields["email"])
}
