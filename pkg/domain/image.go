package domain

import "time"

// モデルと課金に関する固定値です。
const (
	DefaultModel      = "gemini-2.5-flash-image-preview"
	CostPerImageUSD   = 0.039
	TokensPerImage    = 1290
	MinPromptLength   = 3
	MaxPromptLength   = 2000
	MaxCandidateCount = 4
	MinBlendImages    = 2
	MaxBlendImages    = 4
)

// OperationType は画像が存在する理由（生成・編集・合成）を分類します。
type OperationType string

const (
	OperationGenerated OperationType = "generated"
	OperationEdited    OperationType = "edited"
	OperationBlended   OperationType = "blended"
)

// OperationTypes は保存ディレクトリの作成順序でもあります。
var OperationTypes = []OperationType{OperationGenerated, OperationEdited, OperationBlended}

// Valid は既知の操作種別かどうかを返します。
func (o OperationType) Valid() bool {
	switch o {
	case OperationGenerated, OperationEdited, OperationBlended:
		return true
	}
	return false
}

// Quality は生成品質のティアです。
type Quality string

const (
	QualityAuto   Quality = "auto"
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// OutputFormat は呼び出し側が要求する出力形式です。
type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWEBP OutputFormat = "webp"
)

// Style はプロンプトに注入するスタイルプリセット名です。
type Style string

const (
	StylePhotorealistic Style = "photorealistic"
	StyleDigitalArt     Style = "digital_art"
	StyleOilPainting    Style = "oil_painting"
	StyleWatercolor     Style = "watercolor"
	StyleCartoon        Style = "cartoon"
	StyleAnime          Style = "anime"
	StyleSketch         Style = "sketch"
	StyleVintage        Style = "vintage"
)

// GenerationRequest は検証済みの画像生成要求です。
// 正規化を通過した後は下流で再検証しません。
type GenerationRequest struct {
	Prompt             string
	AspectRatio        string
	Style              Style
	Quality            Quality
	OutputFormat       OutputFormat
	CandidateCount     int
	AdditionalKeywords []string
	OptimizePrompt     bool
	NegativePrompt     bool
}

// EditRequest は検証済みの画像編集要求です。
type EditRequest struct {
	ImagePath      string
	MaskPath       string
	EditPrompt     string
	OutputFormat   OutputFormat
	Quality        Quality
	OptimizePrompt bool
	NegativePrompt bool
}

// BlendRequest は検証済みの画像合成要求です。
type BlendRequest struct {
	ImagePaths          []string
	BlendPrompt         string
	MaintainConsistency bool
	OutputFormat        OutputFormat
	Quality             Quality
	OptimizePrompt      bool
	NegativePrompt      bool
}

// StatusRequest はステータス取得のオプションです。
type StatusRequest struct {
	Detailed       bool
	IncludeHistory bool
	ResetStats     bool
}

// HistoryRequest は履歴検索のオプションです。Query が空なら時系列の履歴を返します。
type HistoryRequest struct {
	OperationType OperationType
	Limit         int
	Query         string
	Threshold     float64
}

// ImageResponse はプロバイダから返された 1 枚分の画像データです。
type ImageResponse struct {
	Data     []byte
	MimeType string
}

// ImageRecord は台帳に記録される 1 枚分のメタデータです。保存時に一度だけ作られます。
type ImageRecord struct {
	Filename              string        `json:"filename"`
	Filepath              string        `json:"filepath"`
	OperationType         OperationType `json:"operationType"`
	CreatedAt             time.Time     `json:"createdAt"`
	FileSizeBytes         int64         `json:"fileSizeBytes"`
	Format                string        `json:"format"`
	RequestedFormat       string        `json:"requestedFormat,omitempty"`
	Width                 int           `json:"width,omitempty"`
	Height                int           `json:"height,omitempty"`
	OriginalPrompt        string        `json:"originalPrompt"`
	OptimizedPrompt       string        `json:"optimizedPrompt"`
	ModelIdentifier       string        `json:"modelIdentifier"`
	GenerationTimeSeconds float64       `json:"generationTimeSeconds"`
	CostUSD               float64       `json:"costUsd"`
	ContentHash           string        `json:"contentHash"`
	IntegrityWarning      string        `json:"integrityWarning,omitempty"`
	RequestID             string        `json:"requestId,omitempty"`
	SourceImages          []string      `json:"sourceImages,omitempty"`
	MaskPath              string        `json:"maskPath,omitempty"`
}

// AspectRatioPresets は名前付きアスペクト比とその比率文字列です。
var AspectRatioPresets = map[string]string{
	"square":     "1:1",
	"landscape":  "16:9",
	"portrait":   "9:16",
	"widescreen": "21:9",
	"cinema":     "2.39:1",
	"photo":      "4:3",
	"instagram":  "1:1",
	"story":      "9:16",
	"banner":     "3:1",
}

// ResolveAspectRatio は名前付きプリセットを比率文字列に解決します。未知の値はそのまま返します。
func ResolveAspectRatio(s string) string {
	if r, ok := AspectRatioPresets[s]; ok {
		return r
	}
	return s
}

// Styles は受け付けるスタイルプリセットの一覧です。
var Styles = []Style{
	StylePhotorealistic, StyleDigitalArt, StyleOilPainting, StyleWatercolor,
	StyleCartoon, StyleAnime, StyleSketch, StyleVintage,
}
