package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/reconciler"
)

func TestBuildContents(t *testing.T) {
	t.Run("プロンプト・ラベル付き画像・除外指示の順に並ぶ", func(t *testing.T) {
		contents := buildContents(Request{
			Prompt:         "Edit this image to add a hat",
			NegativePrompt: "blurry",
			Images: []SourceImage{
				{Data: []byte("img"), MimeType: "image/png"},
				{Data: []byte("mask"), MimeType: "image/png", Label: "Mask"},
				{MimeType: "image/png"},
			},
		})
		require.Len(t, contents, 1)
		parts := contents[0].Parts
		require.Len(t, parts, 5)
		assert.Equal(t, "Edit this image to add a hat", parts[0].Text)
		assert.Equal(t, []byte("img"), parts[1].InlineData.Data)
		assert.Equal(t, "Mask:", parts[2].Text)
		assert.Equal(t, []byte("mask"), parts[3].InlineData.Data)
		assert.Equal(t, "Avoid: blurry", parts[4].Text)
	})
}

func TestSafetySettings(t *testing.T) {
	tests := []struct {
		level SafetyLevel
		want  genai.HarmBlockThreshold
	}{
		{SafetyStrict, genai.HarmBlockThresholdBlockLowAndAbove},
		{SafetyModerate, genai.HarmBlockThresholdBlockMediumAndAbove},
		{SafetyPermissive, genai.HarmBlockThresholdBlockOnlyHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			settings := safetySettings(tt.level)
			require.Len(t, settings, len(harmCategories))
			for _, s := range settings {
				assert.Equal(t, tt.want, s.Threshold)
			}
		})
	}
}

func TestParseSafetyLevel(t *testing.T) {
	l, err := ParseSafetyLevel("")
	require.NoError(t, err)
	assert.Equal(t, SafetyModerate, l)

	_, err = ParseSafetyLevel("lenient")
	assert.Error(t, err)
}

func TestParseResponse(t *testing.T) {
	t.Run("InlineData・data URI・JSON フィールドをそれぞれのペイロードにする", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte("raw")}},
				{Text: "data:image/jpeg;base64,/9j/"},
				{Text: `{"data":"iVBORw0KGgo=","mime_type":"image/png"}`},
				{Text: "Here is your image"},
			}},
		}}}

		payloads, texts, err := parseResponse(resp)
		require.NoError(t, err)
		require.Len(t, payloads, 3)
		assert.Equal(t, reconciler.KindBinary, payloads[0].Kind)
		assert.Equal(t, reconciler.KindEncoded, payloads[1].Kind)
		assert.Equal(t, "image/jpeg", payloads[1].MimeType)
		assert.Equal(t, reconciler.KindFields, payloads[2].Kind)
		assert.Equal(t, []string{"Here is your image"}, texts)
	})

	t.Run("画像が無く正常終了なら NO_RESULT_ERROR", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			FinishReason: genai.FinishReasonStop,
			Content:      &genai.Content{Parts: []*genai.Part{{Text: "I cannot draw that"}}},
		}}}
		_, texts, err := parseResponse(resp)
		assert.Equal(t, domain.CodeNoResult, domain.CodeOf(err))
		assert.Equal(t, []string{"I cannot draw that"}, texts)
	})

	t.Run("プロンプトがブロックされたら UNSAFE_CONTENT", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}
		_, _, err := parseResponse(resp)
		assert.Equal(t, domain.CodeUnsafeContent, domain.CodeOf(err))
	})

	t.Run("異常終了は API_ERROR", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}}}
		_, _, err := parseResponse(resp)
		assert.Equal(t, domain.CodeAPI, domain.CodeOf(err))
	})

	t.Run("nil や候補なしは NO_RESULT_ERROR", func(t *testing.T) {
		_, _, err := parseResponse(nil)
		assert.Equal(t, domain.CodeNoResult, domain.CodeOf(err))
		_, _, err = parseResponse(&genai.GenerateContentResponse{})
		assert.Equal(t, domain.CodeNoResult, domain.CodeOf(err))
	})
}
