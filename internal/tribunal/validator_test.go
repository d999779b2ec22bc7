package tribunal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valinor-ai/airlock/internal/llm"
)

func TestLLMValidator_Prompt(t *testing.T) {
	var got llm.CompletionRequest
	v := NewLLMValidator(llm.CompleterFunc(func(_ context.Context, req llm.CompletionRequest) (string, error) {
		got = req
		return "  PASS\n", nil
	}), LLMConfig{})

	judgment, err := v.Validate(context.Background(), "Hello there", []string{"Be helpful.", "No slang."})
	require.NoError(t, err)
	assert.Equal(t, "PASS", judgment)

	assert.Equal(t, "llama3.2", got.Model)
	assert.Equal(t, 0.0, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "POLICIES:\n- Be helpful.\n- No slang.\nCONTENT:\nHello there\nReturn 'PASS' or 'FAIL: <Reason>'.", got.Messages[1].Content)
}

func TestLLMValidator_TruncatesDraft(t *testing.T) {
	var prompt string
	v := NewLLMValidator(llm.CompleterFunc(func(_ context.Context, req llm.CompletionRequest) (string, error) {
		prompt = req.Messages[1].Content
		return "PASS", nil
	}), LLMConfig{MaxDraftRunes: 5})

	_, err := v.Validate(context.Background(), "héllo wörld", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "CONTENT:\nhéllo\nReturn")
	assert.True(t, utf8.ValidString(prompt))
}

func TestLLMValidator_EmptyJudgmentIsError(t *testing.T) {
	v := NewLLMValidator(llm.CompleterFunc(func(context.Context, llm.CompletionRequest) (string, error) {
		return "   ", nil
	}), LLMConfig{})

	_, err := v.Validate(context.Background(), "x", nil)
	require.Error(t, err)
}

func TestLLMValidator_TimeoutFailsOpen(t *testing.T) {
	v := NewLLMValidator(llm.CompleterFunc(func(ctx context.Context, _ llm.CompletionRequest) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), LLMConfig{Timeout: 20 * time.Millisecond})

	verdict := New(nil, v).Verify(context.Background(), "A normal answer.", "")
	assert.Equal(t, OutcomePass, verdict.Outcome)
	assert.Equal(t, []string{IssueSkipped}, verdict.Issues)
}

func TestLLMValidator_OverHTTP(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Messages []llm.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		judgment := "PASS"
		if strings.Contains(body.Messages[1].Content, "guaranteed returns") {
			judgment = "FAIL: Promises investment returns"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": judgment}}},
		})
	}))
	defer backend.Close()

	tr := New(newPolicies(), NewLLMValidator(llm.NewClient(llm.ClientConfig{BaseURL: backend.URL}), LLMConfig{}))

	verdict := tr.Verify(context.Background(), "This fund has guaranteed returns.", "finance")
	assert.Equal(t, Fail("FAIL: Promises investment returns"), verdict)

	verdict = tr.Verify(context.Background(), "Diversify and consult an advisor.", "finance")
	assert.Equal(t, Pass(), verdict)
}

func TestLLMValidator_BackendDownFailsOpen(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := backend.URL
	backend.Close()

	tr := New(newPolicies(), NewLLMValidator(llm.NewClient(llm.ClientConfig{BaseURL: url}), LLMConfig{}))
	verdict := tr.Verify(context.Background(), "Hello", "")
	assert.Equal(t, []string{IssueSkipped}, verdict.Issues)
}
