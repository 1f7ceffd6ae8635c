package normalizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

var (
	ratioPattern = regexp.MustCompile(`^\d+(\.\d+)?:\d+(\.\d+)?$`)

	qualities = []domain.Quality{domain.QualityAuto, domain.QualityLow, domain.QualityMedium, domain.QualityHigh}
	formats   = []domain.OutputFormat{domain.FormatPNG, domain.FormatJPEG, domain.FormatWEBP}
)

// PathResolver は画像パスの存在を確認し、絶対パスに解決します。
type PathResolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// LocalResolver はローカルファイルシステムのみを対象とする PathResolver です。
type LocalResolver struct{}

// Resolve は path を絶対パスにし、読み取り可能な通常ファイルであることを確認します。
func (LocalResolver) Resolve(_ context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("絶対パスへの変換に失敗しました: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", err
	}
	return abs, f.Close()
}

// Defaults は引数が省略されたときに使う値です。
type Defaults struct {
	OutputFormat domain.OutputFormat
	Quality      domain.Quality
}

// Normalizer は緩い型のツール引数を検証済みのリクエストに変換します。
type Normalizer struct {
	resolver PathResolver
	defaults Defaults
}

// New は Normalizer を初期化します。resolver が nil の場合は LocalResolver を使います。
func New(resolver PathResolver, defaults Defaults) *Normalizer {
	if resolver == nil {
		resolver = LocalResolver{}
	}
	if defaults.OutputFormat == "" {
		defaults.OutputFormat = domain.FormatPNG
	}
	if defaults.Quality == "" {
		defaults.Quality = domain.QualityHigh
	}
	return &Normalizer{resolver: resolver, defaults: defaults}
}

// Generate は generate ツールの引数を検証します。
func (n *Normalizer) Generate(ctx context.Context, args map[string]any) (domain.GenerationRequest, error) {
	var errs domain.ValidationErrors
	var req domain.GenerationRequest
	var terr *domain.ToolError

	req.Prompt, terr = CoerceText("prompt", lookup(args, "prompt"), true, domain.MinPromptLength, domain.MaxPromptLength)
	errs.Add(terr)

	req.AspectRatio, terr = coerceAspectRatio(lookup(args, "aspectRatio", "aspect_ratio"))
	errs.Add(terr)

	req.Style, terr = CoerceEnum("style", lookup(args, "style"), domain.Style(""), domain.Styles)
	errs.Add(terr)

	req.Quality, terr = CoerceEnum("quality", lookup(args, "quality"), n.defaults.Quality, qualities)
	errs.Add(terr)

	req.OutputFormat, terr = CoerceEnum("outputFormat", lookup(args, "outputFormat", "output_format"), n.defaults.OutputFormat, formats)
	errs.Add(terr)

	req.CandidateCount, terr = coerceCandidateCount(lookup(args, "candidateCount", "candidate_count"))
	errs.Add(terr)

	req.AdditionalKeywords, terr = CoerceStringList("additionalKeywords", lookup(args, "additionalKeywords", "additional_keywords"))
	errs.Add(terr)

	req.OptimizePrompt, terr = CoerceBool("optimizePrompt", lookup(args, "optimizePrompt", "optimize_prompt"), true)
	errs.Add(terr)

	req.NegativePrompt, terr = CoerceBool("negativePrompt", lookup(args, "negativePrompt", "negative_prompt"), false)
	errs.Add(terr)

	if err := errs.Err(); err != nil {
		return domain.GenerationRequest{}, err
	}
	return req, nil
}

// Edit は edit ツールの引数を検証します。マスク寸法の不一致はここでは扱いません。
func (n *Normalizer) Edit(ctx context.Context, args map[string]any) (domain.EditRequest, error) {
	var errs domain.ValidationErrors
	var req domain.EditRequest
	var terr *domain.ToolError

	req.ImagePath, terr = n.coercePath(ctx, "imagePath", lookup(args, "imagePath", "image_path"), true)
	errs.Add(terr)

	req.EditPrompt, terr = CoerceText("editPrompt", lookup(args, "editPrompt", "edit_prompt"), true, domain.MinPromptLength, domain.MaxPromptLength)
	errs.Add(terr)

	req.MaskPath, terr = n.coercePath(ctx, "maskPath", lookup(args, "maskPath", "mask_path"), false)
	errs.Add(terr)

	req.OutputFormat, terr = CoerceEnum("outputFormat", lookup(args, "outputFormat", "output_format"), n.defaults.OutputFormat, formats)
	errs.Add(terr)

	req.Quality, terr = CoerceEnum("quality", lookup(args, "quality"), n.defaults.Quality, qualities)
	errs.Add(terr)

	req.OptimizePrompt, terr = CoerceBool("optimizePrompt", lookup(args, "optimizePrompt", "optimize_prompt"), true)
	errs.Add(terr)

	req.NegativePrompt, terr = CoerceBool("negativePrompt", lookup(args, "negativePrompt", "negative_prompt"), false)
	errs.Add(terr)

	if err := errs.Err(); err != nil {
		return domain.EditRequest{}, err
	}
	return req, nil
}

// Blend は blend ツールの引数を検証します。枚数の検査はパスの存在確認より先に行います。
func (n *Normalizer) Blend(ctx context.Context, args map[string]any) (domain.BlendRequest, error) {
	var errs domain.ValidationErrors
	var req domain.BlendRequest
	var terr *domain.ToolError

	paths, terr := CoerceStringList("imagePaths", lookup(args, "imagePaths", "image_paths"))
	errs.Add(terr)
	if terr == nil {
		if len(paths) < domain.MinBlendImages || len(paths) > domain.MaxBlendImages {
			errs.Add(domain.NewValidationError("imagePaths", "must contain %d to %d images (got %d)",
				domain.MinBlendImages, domain.MaxBlendImages, len(paths)))
		} else {
			for i, p := range paths {
				abs, perr := n.coercePath(ctx, fmt.Sprintf("imagePaths[%d]", i), p, true)
				if perr != nil {
					errs.Add(perr)
					continue
				}
				req.ImagePaths = append(req.ImagePaths, abs)
			}
		}
	}

	req.BlendPrompt, terr = CoerceText("blendPrompt", lookup(args, "blendPrompt", "blend_prompt"), true, domain.MinPromptLength, domain.MaxPromptLength)
	errs.Add(terr)

	req.MaintainConsistency, terr = CoerceBool("maintainConsistency", lookup(args, "maintainConsistency", "maintain_consistency"), true)
	errs.Add(terr)

	req.OutputFormat, terr = CoerceEnum("outputFormat", lookup(args, "outputFormat", "output_format"), n.defaults.OutputFormat, formats)
	errs.Add(terr)

	req.Quality, terr = CoerceEnum("quality", lookup(args, "quality"), n.defaults.Quality, qualities)
	errs.Add(terr)

	req.OptimizePrompt, terr = CoerceBool("optimizePrompt", lookup(args, "optimizePrompt", "optimize_prompt"), true)
	errs.Add(terr)

	req.NegativePrompt, terr = CoerceBool("negativePrompt", lookup(args, "negativePrompt", "negative_prompt"), false)
	errs.Add(terr)

	if err := errs.Err(); err != nil {
		return domain.BlendRequest{}, err
	}
	return req, nil
}

// Status は status ツールの引数を検証します。
func (n *Normalizer) Status(_ context.Context, args map[string]any) (domain.StatusRequest, error) {
	var errs domain.ValidationErrors
	var req domain.StatusRequest
	var terr *domain.ToolError

	req.Detailed, terr = CoerceBool("detailed", lookup(args, "detailed"), true)
	errs.Add(terr)
	req.IncludeHistory, terr = CoerceBool("includeHistory", lookup(args, "includeHistory", "include_history"), false)
	errs.Add(terr)
	req.ResetStats, terr = CoerceBool("resetStats", lookup(args, "resetStats", "reset_stats"), false)
	errs.Add(terr)

	if err := errs.Err(); err != nil {
		return domain.StatusRequest{}, err
	}
	return req, nil
}

// History は history ツールの引数を検証します。
func (n *Normalizer) History(_ context.Context, args map[string]any) (domain.HistoryRequest, error) {
	var errs domain.ValidationErrors
	var req domain.HistoryRequest
	var terr *domain.ToolError

	var op string
	op, terr = CoerceText("operationType", lookup(args, "operationType", "operation_type"), false, 0, 0)
	errs.Add(terr)
	if op != "" && !domain.OperationType(op).Valid() {
		errs.Add(domain.NewValidationError("operationType", "must be one of generated, edited, blended, got %q", op))
	}
	req.OperationType = domain.OperationType(op)

	req.Limit, terr = CoerceInt("limit", lookup(args, "limit"), 20)
	errs.Add(terr)
	if terr == nil && req.Limit < 1 {
		errs.Add(domain.NewValidationError("limit", "must be positive, got %d", req.Limit))
	}

	req.Query, terr = CoerceText("query", lookup(args, "query"), false, 0, domain.MaxPromptLength)
	errs.Add(terr)

	req.Threshold, terr = coerceThreshold(lookup(args, "threshold"))
	errs.Add(terr)

	if err := errs.Err(); err != nil {
		return domain.HistoryRequest{}, err
	}
	return req, nil
}

func (n *Normalizer) coercePath(ctx context.Context, field string, raw any, required bool) (string, *domain.ToolError) {
	s, terr := CoerceText(field, raw, required, 0, 0)
	if terr != nil || s == "" {
		return "", terr
	}
	abs, err := n.resolver.Resolve(ctx, s)
	if err != nil {
		return "", domain.NewValidationError(field, "image not found or unreadable: %s (%v)", s, err)
	}
	return abs, nil
}

// coerceCandidateCount は範囲外を丸めずに拒否します。
func coerceCandidateCount(raw any) (int, *domain.ToolError) {
	n, terr := CoerceInt("candidateCount", raw, 1)
	if terr != nil {
		return 0, terr
	}
	if n < 1 || n > domain.MaxCandidateCount {
		return 0, domain.NewValidationError("candidateCount", "must be between 1 and %d, got %d", domain.MaxCandidateCount, n)
	}
	return n, nil
}

func coerceAspectRatio(raw any) (string, *domain.ToolError) {
	s, terr := CoerceText("aspectRatio", raw, false, 0, 0)
	if terr != nil || s == "" {
		return "", terr
	}
	if _, ok := domain.AspectRatioPresets[s]; ok || ratioPattern.MatchString(s) {
		return s, nil
	}
	return "", domain.NewValidationError("aspectRatio", "must be W:H or a named preset, got %q", s)
}

func coerceThreshold(raw any) (float64, *domain.ToolError) {
	const def = 0.8
	var f float64
	switch v := raw.(type) {
	case nil:
		return def, nil
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, domain.NewValidationError("threshold", "not a valid number: %q", v)
		}
		f = parsed
	default:
		return 0, domain.NewValidationError("threshold", "not a valid number: unsupported type %T", raw)
	}
	if f < 0 || f > 1 {
		return 0, domain.NewValidationError("threshold", "must be between 0 and 1, got %g", f)
	}
	return f, nil
}
