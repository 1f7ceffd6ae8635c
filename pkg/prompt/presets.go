package prompt

import "github.com/shouni/nanobanana-mcp/pkg/domain"

// Category はプロンプトの用途で、付与する導入句と除外語が変わります。
type Category string

const (
	CategoryGeneration    Category = "generation"
	CategoryEditing       Category = "editing"
	CategoryBlending      Category = "blending"
	CategoryStyleTransfer Category = "style_transfer"
)

// CategoryFor は操作種別に対応するカテゴリを返します。
func CategoryFor(op domain.OperationType) Category {
	switch op {
	case domain.OperationEdited:
		return CategoryEditing
	case domain.OperationBlended:
		return CategoryBlending
	default:
		return CategoryGeneration
	}
}

// leadIns の順序は照合順序でもあります。
var leadIns = []struct {
	category Category
	phrase   string
}{
	{CategoryGeneration, "Generate an image of"},
	{CategoryEditing, "Edit this image to"},
	{CategoryBlending, "Blend these images to create"},
	{CategoryStyleTransfer, "Apply the style of"},
}

// QualityKeywords のいずれかが含まれていれば品質キーワードは追加しません。
var QualityKeywords = []string{
	"high quality", "detailed", "sharp", "crisp", "professional",
	"photorealistic", "ultra-detailed", "masterpiece", "best quality",
}

var qualityAdditions = map[domain.Quality][]string{
	domain.QualityHigh:   {"high quality", "detailed", "professional"},
	domain.QualityMedium: {"good quality", "clear"},
}

var defaultQualityAdditions = []string{"high quality", "detailed"}

// StylePresets はスタイル名ごとの記述キーワードです。
var StylePresets = map[domain.Style][]string{
	domain.StylePhotorealistic: {"photorealistic", "professional photography", "high quality"},
	domain.StyleDigitalArt:     {"digital art", "concept art", "detailed illustration"},
	domain.StyleOilPainting:    {"oil painting", "classical art", "brush strokes"},
	domain.StyleWatercolor:     {"watercolor painting", "soft colors", "artistic"},
	domain.StyleCartoon:        {"cartoon style", "animated", "colorful", "stylized"},
	domain.StyleAnime:          {"anime style", "manga", "japanese animation"},
	domain.StyleSketch:         {"pencil sketch", "black and white", "hand-drawn"},
	domain.StyleVintage:        {"vintage style", "retro", "aged", "classic"},
}

// ProhibitedKeywords は部分一致で拒否する語です。
var ProhibitedKeywords = []string{
	"nsfw", "explicit", "adult", "violence", "gore",
	"hate", "discrimination", "illegal", "harmful", "dangerous",
}

// ConsistencyKeywords は合成時に一貫性を保つためのヒントです。
var ConsistencyKeywords = []string{"consistent style", "coherent composition", "unified lighting"}

var translationRecommended = map[string]bool{
	"ko": true, "ja": true, "zh": true, "es": true, "fr": true,
	"de": true, "it": true, "pt": true, "ru": true,
}

// koreanDictionary は置換順序を固定するためスライスで保持します。
var koreanDictionary = [][2]string{
	{"고양이", "cat"},
	{"강아지", "dog"},
	{"꽃", "flower"},
	{"나무", "tree"},
	{"하늘", "sky"},
	{"바다", "ocean"},
	{"산", "mountain"},
	{"집", "house"},
	{"자동차", "car"},
	{"사람", "person"},
	{"아름다운", "beautiful"},
	{"예쁜", "pretty"},
	{"멋진", "cool"},
	{"큰", "big"},
	{"작은", "small"},
}

var baseNegative = []string{
	"blurry", "low quality", "distorted", "deformed",
	"text", "watermark", "signature", "username",
}

var categoryNegative = map[Category][]string{
	CategoryGeneration:    {"bad anatomy", "extra limbs"},
	CategoryEditing:       {"artifacts", "noise"},
	CategoryBlending:      {"mismatched colors", "harsh transitions"},
	CategoryStyleTransfer: {"style inconsistency"},
}
