package settings

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/staticforge/staticforge/internal/xerrors"
)

// Resolved is the fully validated, fully-defaulted configuration used
// to drive one pipeline run. Struct tags give go-playground/validator
// the schema; unknown keys in the sparse overrides are preserved
// through the Document stage but dropped once converted to Resolved,
// since the resolved result is validated against a schema that
// supplies defaults for any missing leaves.
type Resolved struct {
	Crawl   CrawlSettings   `json:"crawl" validate:"required"`
	Images  ImagesSettings  `json:"images" validate:"required"`
	CSS     CSSSettings     `json:"css" validate:"required"`
	JS      JSSettings      `json:"js" validate:"required"`
	HTML    HTMLSettings    `json:"html" validate:"required"`
	Fonts   FontsSettings   `json:"fonts" validate:"required"`
	Deploy  DeploySettings  `json:"deploy" validate:"required"`
	Measure MeasureSettings `json:"measure" validate:"required"`
}

type CrawlSettings struct {
	MaxPages    int `json:"maxPages" validate:"min=1,max=100000"`
	MaxDepth    int `json:"maxDepth" validate:"min=1,max=50"`
	Concurrency int `json:"concurrency" validate:"min=1,max=64"`
}

type ImagesSettings struct {
	QualityLCP      int  `json:"qualityLcp" validate:"min=1,max=100"`
	QualityStandard int  `json:"qualityStandard" validate:"min=1,max=100"`
	QualityThumb    int  `json:"qualityThumbnail" validate:"min=1,max=100"`
	ModernFormat    string `json:"modernFormat" validate:"oneof=webp avif"`
	SkipBelowBytes  int  `json:"skipBelowBytes" validate:"min=0"`
}

type CSSSettings struct {
	PurgeAggressiveness string   `json:"purgeAggressiveness" validate:"oneof=safe moderate aggressive"`
	Minify              bool     `json:"minify"`
	InlineCritical      bool     `json:"inlineCritical"`
	PurgeSafelist       []string `json:"purgeSafelist"`
}

type JSSettings struct {
	RemoveBloat  bool     `json:"removeBloat"`
	BloatList    []string `json:"bloatList"`
	Minify       bool     `json:"minify"`
	DeferDefault bool     `json:"deferDefault"`
}

type HTMLSettings struct {
	StripMetadata  bool `json:"stripMetadata"`
	ResourceHints  bool `json:"resourceHints"`
	EmbedFacades   bool `json:"embedFacades"`
}

type FontsSettings struct {
	RehostExternal bool   `json:"rehostExternal"`
	Display        string `json:"display" validate:"oneof=swap optional auto block"`
}

type DeploySettings struct {
	Provider string `json:"provider" validate:"oneof=s3"`
	Bucket   string `json:"bucket"`
}

type MeasureSettings struct {
	Strategies []string `json:"strategies" validate:"dive,oneof=mobile desktop"`
}

// Defaults returns the full, validated built-in object the resolver
// merges overrides onto.
func Defaults() Resolved {
	return Resolved{
		Crawl:   CrawlSettings{MaxPages: 500, MaxDepth: 8, Concurrency: 4},
		Images:  ImagesSettings{QualityLCP: 85, QualityStandard: 70, QualityThumb: 50, ModernFormat: "webp", SkipBelowBytes: 8192},
		CSS:     CSSSettings{PurgeAggressiveness: "moderate", Minify: true, InlineCritical: true, PurgeSafelist: []string{}},
		JS:      JSSettings{RemoveBloat: true, BloatList: []string{"emoji", "block-library", "analytics-beacon"}, Minify: true, DeferDefault: true},
		HTML:    HTMLSettings{StripMetadata: true, ResourceHints: true, EmbedFacades: true},
		Fonts:   FontsSettings{RehostExternal: true, Display: "swap"},
		Deploy:  DeploySettings{Provider: "s3"},
		Measure: MeasureSettings{Strategies: []string{"mobile", "desktop"}},
	}
}

// DefaultsDocument is Defaults() re-expressed as a generic Document so
// it can be merged with sparse overrides.
func DefaultsDocument() Document {
	raw, _ := json.Marshal(Defaults())
	var d Document
	_ = json.Unmarshal(raw, &d)
	return d
}

var validate = validator.New()

// ValidateAndBackfill converts a merged Document into a Resolved
// struct, letting zero-valued (missing) leaves fall back to Defaults(),
// then validates it. A validation failure is a fatal ConfigError.
func ValidateAndBackfill(merged Document) (*Resolved, error) {
	// Backfill: start from defaults, overlay merged on top so any key
	// the merge omitted keeps its default rather than Go's zero value.
	backfilled := Merge(DefaultsDocument(), merged)

	raw, err := json.Marshal(backfilled)
	if err != nil {
		return nil, xerrors.New(xerrors.ConfigError, "settings", "marshal", err.Error(), err)
	}
	var resolved Resolved
	if err := json.Unmarshal(raw, &resolved); err != nil {
		return nil, xerrors.New(xerrors.ConfigError, "settings", "unmarshal", err.Error(), err)
	}
	if err := validate.Struct(resolved); err != nil {
		return nil, xerrors.New(xerrors.ConfigError, "settings", "validate", fmt.Sprintf("invalid settings: %v", err), err)
	}
	return &resolved, nil
}
