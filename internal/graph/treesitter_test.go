package graph

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// findSymbol returns the first SymbolNode whose Name matches, or nil.
func findSymbol(symbols []SymbolNode, name string) *SymbolNode {
	for i := range symbols {
		if symbols[i].Name == name {
			return &symbols[i]
		}
	}
	return nil
}

// findEdgesByKind returns all edges matching the given kind.
func findEdgesByKind(edges []Edge, kind EdgeKind) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// readFixture reads a test fixture file relative to the project root.
// Tests run from internal/graph/, so the relative path is ../../testdata/...
func readFixture(t *testing.T, relPath string) []byte {
	t.Helper()
	data, err := os.ReadFile("../../" + relPath)
	require.NoError(t, err, "reading fixture %s", relPath)
	return data
}

// assertLineRange checks that StartLine and EndLine are populated and valid.
func assertLineRange(t *testing.T, sym *SymbolNode) {
	t.Helper()
	assert.Greater(t, sym.StartLine, 0, "StartLine should be > 0 for %s", sym.Name)
	assert.Greater(t, sym.EndLine, 0, "EndLine should be > 0 for %s", sym.Name)
	assert.LessOrEqual(t, sym.StartLine, sym.EndLine, "StartLine <= EndLine for %s", sym.Name)
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_SupportedLanguages
// ---------------------------------------------------------------------------

func TestTreeSitterParser_SupportedLanguages(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()

	langs := p.SupportedLanguages()
	assert.Len(t, langs, 4, "should support exactly 4 languages")

	langSet := make(map[Language]bool, len(langs))
	for _, l := range langs {
		langSet[l] = true
	}
	assert.True(t, langSet[LangGo], "should support Go")
	assert.True(t, langSet[LangTypeScript], "should support TypeScript")
	assert.True(t, langSet[LangPython], "should support Python")
	assert.True(t, langSet[LangRust], "should support Rust")
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Go
// ---------------------------------------------------------------------------

func TestTreeSitterParser_Go(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	ctx := context.Background()

	t.Run("model.go", func(t *testing.T) {
		src := readFixture(t, "testdata/fixtures/go_project/model.go")
		res, err := p.Parse(ctx, "model.go", src, LangGo)
		require.NoError(t, err)
		require.NotNil(t, res)

		// FileNode
		assert.Equal(t, "model.go", res.File.Path)
		assert.Equal(t, LangGo, res.File.Language)
		assert.Greater(t, res.File.LOC, 0)

		// Symbols: User (struct/type), Repository (interface), newUser (function)
		assert.GreaterOrEqual(t, len(res.Symbols), 3, "expected at least 3 symbols")

		user := findSymbol(res.Symbols, "User")
		require.NotNil(t, user, "User symbol should exist")
		assert.Equal(t, SymbolKindType, user.Kind)
		assert.True(t, user.Exported)
		assertLineRange(t, user)

		repo := findSymbol(res.Symbols, "Repository")
		require.NotNil(t, repo, "Repository symbol should exist")
		assert.Equal(t, SymbolKindInterface, repo.Kind)
		assert.True(t, repo.Exported)
		assertLineRange(t, repo)

		newUser := findSymbol(res.Symbols, "newUser")
		require.NotNil(t, newUser, "newUser symbol should exist")
		assert.Equal(t, SymbolKindFunction, newUser.Kind)
		assert.False(t, newUser.Exported)
		assertLineRange(t, newUser)

		// No imports in model.go
		imports := findEdgesByKind(res.Edges, EdgeKindImports)
		assert.Empty(t, imports, "model.go has no imports")
	})

	t.Run("service.go", func(t *testing.T) {
		src := readFixture(t, "testdata/fixtures/go_project/service.go")
		res, err := p.Parse(ctx, "service.go", src, LangGo)
		require.NoError(t, err)
		require.NotNil(t, res)

		// Symbols: UserService (type), NewUserService (func), GetUser (method), CreateUser (method)
		assert.GreaterOrEqual(t, len(res.Symbols), 4, "expected at least 4 symbols")

		us := findSymbol(res.Symbols, "UserService")
		require.NotNil(t, us, "UserService symbol should exist")
		assert.Equal(t, SymbolKindType, us.Kind)
		assert.True(t, us.Exported)

		nus := findSymbol(res.Symbols, "NewUserService")
		require.NotNil(t, nus, "NewUserService symbol should exist")
		assert.Equal(t, SymbolKindFunction, nus.Kind)
		assert.True(t, nus.Exported)

		gu := findSymbol(res.Symbols, "GetUser")
		require.NotNil(t, gu, "GetUser symbol should exist")
		assert.Equal(t, SymbolKindMethod, gu.Kind)
		assert.True(t, gu.Exported)

		cu := findSymbol(res.Symbols, "CreateUser")
		require.NotNil(t, cu, "CreateUser symbol should exist")
		assert.Equal(t, SymbolKindMethod, cu.Kind)
		assert.True(t, cu.Exported)

		// Import edge for "fmt"
		imports := findEdgesByKind(res.Edges, EdgeKindImports)
		require.GreaterOrEqual(t, len(imports), 1, "should have at least 1 import edge")
		found := false
		for _, e := range imports {
			if e.TargetID == "fmt" {
				found = true
				break
			}
		}
		assert.True(t, found, "should have import edge for fmt")
	})
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_TypeScript
// ---------------------------------------------------------------------------

const tsSessionSource = `import { User } from "./types";
import { hashToken } from "./crypto";

export interface Session {
  id: string;
  userId: string;
}

export type TokenPair = { access: string; refresh: string };

export enum Status {
  Active,
  Revoked,
}

export class SessionService {
  create(user: User): Session {
    return { id: hashToken(user.id), userId: user.id };
  }
}

export const refresh = (pair: TokenPair): TokenPair => pair;

function internalHelper(): void {}
`

func TestTreeSitterParser_TypeScript(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	ctx := context.Background()

	res, err := p.Parse(ctx, "src/session.ts", []byte(tsSessionSource), LangTypeScript)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, LangTypeScript, res.File.Language)
	assert.Greater(t, res.File.LOC, 0)

	session := findSymbol(res.Symbols, "Session")
	require.NotNil(t, session, "Session interface should exist")
	assert.Equal(t, SymbolKindInterface, session.Kind)
	assert.True(t, session.Exported)
	assertLineRange(t, session)

	pair := findSymbol(res.Symbols, "TokenPair")
	require.NotNil(t, pair, "TokenPair type should exist")
	assert.Equal(t, SymbolKindType, pair.Kind)
	assert.True(t, pair.Exported)

	status := findSymbol(res.Symbols, "Status")
	require.NotNil(t, status, "Status enum should exist")
	assert.Equal(t, SymbolKindType, status.Kind, "enums map to the type kind")
	assert.True(t, status.Exported)

	svc := findSymbol(res.Symbols, "SessionService")
	require.NotNil(t, svc, "SessionService class should exist")
	assert.Equal(t, SymbolKindClass, svc.Kind)
	assert.True(t, svc.Exported)

	refresh := findSymbol(res.Symbols, "refresh")
	require.NotNil(t, refresh, "refresh arrow function should exist")
	assert.Equal(t, SymbolKindFunction, refresh.Kind)
	assert.True(t, refresh.Exported)

	helper := findSymbol(res.Symbols, "internalHelper")
	require.NotNil(t, helper, "internalHelper function should exist")
	assert.False(t, helper.Exported, "not inside an export_statement")

	imports := findEdgesByKind(res.Edges, EdgeKindImports)
	require.Len(t, imports, 2)
	targets := make(map[string]bool)
	for _, e := range imports {
		targets[e.TargetID] = true
	}
	assert.True(t, targets["./types"], "should import ./types")
	assert.True(t, targets["./crypto"], "should import ./crypto")
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Python
// ---------------------------------------------------------------------------

const pySessionSource = `"""Token validation helpers."""

from .models import User
import jwt


def _decode(token):
    return jwt.decode(token)


def validate_token(token):
    claims = _decode(token)
    return User(claims["sub"])


class SessionStore:
    def get(self, key):
        return self._data.get(key)
`

func TestTreeSitterParser_Python(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	ctx := context.Background()

	res, err := p.Parse(ctx, "auth/session.py", []byte(pySessionSource), LangPython)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, LangPython, res.File.Language)
	assert.Greater(t, res.File.LOC, 0)

	// Top-level symbols only: _decode, validate_token, SessionStore.
	// The get method inside SessionStore is not top-level.
	assert.Len(t, res.Symbols, 3)

	decode := findSymbol(res.Symbols, "_decode")
	require.NotNil(t, decode, "_decode function should exist")
	assert.Equal(t, SymbolKindFunction, decode.Kind)
	assert.False(t, decode.Exported, "underscore-prefixed names are unexported in Python")

	validate := findSymbol(res.Symbols, "validate_token")
	require.NotNil(t, validate, "validate_token function should exist")
	assert.Equal(t, SymbolKindFunction, validate.Kind)
	assert.True(t, validate.Exported)
	assertLineRange(t, validate)

	store := findSymbol(res.Symbols, "SessionStore")
	require.NotNil(t, store, "SessionStore class should exist")
	assert.Equal(t, SymbolKindClass, store.Kind)
	assert.True(t, store.Exported)

	imports := findEdgesByKind(res.Edges, EdgeKindImports)
	require.Len(t, imports, 2)
	targets := make(map[string]bool)
	for _, e := range imports {
		targets[e.TargetID] = true
	}
	assert.True(t, targets[".models"], "should import .models")
	assert.True(t, targets["jwt"], "should import jwt")
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Rust
// ---------------------------------------------------------------------------

const rsTokenSource = `use crate::model::{Claims, User};

pub struct TokenService {
    secret: Vec<u8>,
}

pub trait Verifier {
    fn verify(&self, token: &str) -> bool;
}

impl TokenService {
    pub fn new(secret: Vec<u8>) -> Self {
        TokenService { secret }
    }

    fn sign(&self, claims: &Claims) -> String {
        String::new()
    }
}

pub enum TokenKind {
    Access,
    Refresh,
}
`

func TestTreeSitterParser_Rust(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	ctx := context.Background()

	res, err := p.Parse(ctx, "src/token.rs", []byte(rsTokenSource), LangRust)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, LangRust, res.File.Language)
	assert.Greater(t, res.File.LOC, 0)

	svc := findSymbol(res.Symbols, "TokenService")
	require.NotNil(t, svc, "TokenService struct should exist")
	assert.Equal(t, SymbolKindType, svc.Kind)
	assert.True(t, svc.Exported)
	assertLineRange(t, svc)

	verifier := findSymbol(res.Symbols, "Verifier")
	require.NotNil(t, verifier, "Verifier trait should exist")
	assert.Equal(t, SymbolKindInterface, verifier.Kind)
	assert.True(t, verifier.Exported)

	newFn := findSymbol(res.Symbols, "new")
	require.NotNil(t, newFn, "new method should exist")
	assert.Equal(t, SymbolKindMethod, newFn.Kind)
	assert.True(t, newFn.Exported, "new is pub")

	sign := findSymbol(res.Symbols, "sign")
	require.NotNil(t, sign, "sign method should exist")
	assert.Equal(t, SymbolKindMethod, sign.Kind)
	assert.False(t, sign.Exported, "sign is not pub")

	kind := findSymbol(res.Symbols, "TokenKind")
	require.NotNil(t, kind, "TokenKind enum should exist")
	assert.Equal(t, SymbolKindType, kind.Kind, "enums map to the type kind")
	assert.True(t, kind.Exported)

	imports := findEdgesByKind(res.Edges, EdgeKindImports)
	require.GreaterOrEqual(t, len(imports), 1, "should have at least 1 import edge")
	assert.Contains(t, imports[0].TargetID, "crate::model")
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_UnsupportedLanguage
// ---------------------------------------------------------------------------

func TestTreeSitterParser_UnsupportedLanguage(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	ctx := context.Background()

	_, err := p.Parse(ctx, "test.rb", []byte("puts 'hello'"), Language("ruby"))
	require.Error(t, err, "parsing with an unsupported language should return an error")
	assert.Contains(t, err.Error(), "unsupported language")
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_EmptyFile
// ---------------------------------------------------------------------------

func TestTreeSitterParser_EmptyFile(t *testing.T) {
	p := NewTreeSitterParser()
	defer p.Close()
	ctx := context.Background()

	for _, lang := range []Language{LangGo, LangTypeScript, LangPython, LangRust} {
		t.Run(string(lang), func(t *testing.T) {
			res, err := p.Parse(ctx, "empty."+string(lang), []byte(""), lang)
			require.NoError(t, err, "parsing an empty file should not return an error")
			require.NotNil(t, res)
			assert.Empty(t, res.Symbols, "empty file should produce 0 symbols")
			assert.Equal(t, 0, res.File.LOC, "empty file LOC should be 0")
		})
	}
}

// ---------------------------------------------------------------------------
// TestTreeSitterParser_Close
// ---------------------------------------------------------------------------

func TestTreeSitterParser_Close(t *testing.T) {
	p := NewTreeSitterParser()
	err := p.Close()
	assert.NoError(t, err, "Close should not return an error")

	// Calling Close a second time should also be safe.
	err = p.Close()
	assert.NoError(t, err, "second Close should also not return an error")
}
