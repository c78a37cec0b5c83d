package crawler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Map names a FieldRule or LabelValueRule can write into
const (
	TargetAdInfo      = "adInfo"
	TargetGeneralInfo = "generalInfo"
	TargetFeatures    = "features"
)

// FieldRule fills one map key from a selector cascade.
// The element text is used unless Attr is set.
type FieldRule struct {
	Key       string   `yaml:"key"`
	Selectors []string `yaml:"selectors"`
	Attr      string   `yaml:"attr,omitempty"`
}

// LabelValueRule scans label elements inside each Container and pairs each
// label with its Value sibling. Pairs with an empty side are skipped.
type LabelValueRule struct {
	Container string `yaml:"container,omitempty"`
	Label     string `yaml:"label"`
	Value     string `yaml:"value"`
	Target    string `yaml:"target,omitempty"`
}

// FieldSelectors holds the scalar cascades and map rules for one context
type FieldSelectors struct {
	Link        []string         `yaml:"link,omitempty"`
	Title       []string         `yaml:"title,omitempty"`
	Description []string         `yaml:"description,omitempty"`
	Price       []string         `yaml:"price,omitempty"`
	Location    []string         `yaml:"location,omitempty"`
	Image       []string         `yaml:"image,omitempty"`
	AdInfo      []FieldRule      `yaml:"ad_info,omitempty"`
	GeneralInfo []FieldRule      `yaml:"general_info,omitempty"`
	Features    []FieldRule      `yaml:"features,omitempty"`
	LabelValues []LabelValueRule `yaml:"label_values,omitempty"`
	// IDPatterns are applied to the raw page HTML when the URL carries no ID
	IDPatterns []string `yaml:"id_patterns,omitempty"`
}

// Profile bundles the extraction rules for one site
type Profile struct {
	Name  string   `yaml:"name"`
	Hosts []string `yaml:"hosts"`

	// Scope narrows card search to the first matching container
	Scope []string `yaml:"scope,omitempty"`
	// CardSelectors are tried in order; the first one that yields cards wins
	CardSelectors []string `yaml:"cards"`
	SkipClasses   []string `yaml:"skip_classes,omitempty"`
	MaxCards      int      `yaml:"max_cards,omitempty"`
	// PriceContainer, when set, evaluates Card.Price on the card's closest
	// matching ancestor instead of the card itself
	PriceContainer string `yaml:"price_container,omitempty"`

	Card   FieldSelectors `yaml:"card"`
	Detail FieldSelectors `yaml:"detail"`

	IDPathPatterns   []string `yaml:"id_path_patterns,omitempty"`
	IDQueryPatterns  []string `yaml:"id_query_patterns,omitempty"`
	MarkupIDPatterns []string `yaml:"markup_id_patterns,omitempty"`
	ScriptIDPatterns []string `yaml:"script_id_patterns,omitempty"`

	// OwnerAttrs name attributes whose value is a listing ID
	OwnerAttrs []string `yaml:"owner_attrs,omitempty"`
	// OwnerHints are selectors marking an ancestor of an ID-bearing anchor as a card
	OwnerHints []string `yaml:"owner_hints,omitempty"`

	// DetailURLTemplate is a fmt pattern turning an ID into a detail URL,
	// resolved against the page URL when relative
	DetailURLTemplate string `yaml:"detail_url_template,omitempty"`
	// CanonicalDetailPaths rewrites every link whose path carries an ID to
	// DetailURLTemplate, so language or slug variants of one listing share a key
	CanonicalDetailPaths bool `yaml:"canonical_detail_paths,omitempty"`
	// DetailURLShape matches links that point at detail pages
	DetailURLShape string `yaml:"detail_url_shape,omitempty"`

	PaginationSelectors []string `yaml:"pagination,omitempty"`

	idPath      []*regexp.Regexp
	idQuery     []*regexp.Regexp
	markupIDs   []*regexp.Regexp
	scriptIDs   []*regexp.Regexp
	detailIDs   []*regexp.Regexp
	detailShape *regexp.Regexp
}

// Compile validates the profile and prepares its regular expressions
func (p *Profile) Compile() error {
	if p.Name == "" {
		return fmt.Errorf("profile has no name")
	}

	var err error
	if p.idPath, err = compileAll(p.Name, "id_path_patterns", p.IDPathPatterns); err != nil {
		return err
	}
	if p.idQuery, err = compileAll(p.Name, "id_query_patterns", p.IDQueryPatterns); err != nil {
		return err
	}
	if p.markupIDs, err = compileAll(p.Name, "markup_id_patterns", p.MarkupIDPatterns); err != nil {
		return err
	}
	if p.scriptIDs, err = compileAll(p.Name, "script_id_patterns", p.ScriptIDPatterns); err != nil {
		return err
	}
	if p.detailIDs, err = compileAll(p.Name, "detail.id_patterns", p.Detail.IDPatterns); err != nil {
		return err
	}
	p.detailShape = nil
	if p.DetailURLShape != "" {
		if p.detailShape, err = regexp.Compile(p.DetailURLShape); err != nil {
			return fmt.Errorf("profile %s: detail_url_shape: %w", p.Name, err)
		}
	}
	if p.DetailURLTemplate != "" && strings.Count(p.DetailURLTemplate, "%s") != 1 {
		return fmt.Errorf("profile %s: detail_url_template needs exactly one %%s", p.Name)
	}
	for _, rule := range append(slices.Clone(p.Card.LabelValues), p.Detail.LabelValues...) {
		switch rule.Target {
		case "", TargetAdInfo, TargetGeneralInfo, TargetFeatures:
		default:
			return fmt.Errorf("profile %s: unknown label_values target %q", p.Name, rule.Target)
		}
	}
	return nil
}

func compileAll(profile, field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %s %q: %w", profile, field, pat, err)
		}
		if re.NumSubexp() < 1 {
			return nil, fmt.Errorf("profile %s: %s %q needs a capture group", profile, field, pat)
		}
		out = append(out, re)
	}
	return out, nil
}

// MatchesHost reports whether the profile serves host. A profile without
// hosts matches everything.
func (p *Profile) MatchesHost(host string) bool {
	if len(p.Hosts) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	labels := strings.Split(host, ".")
	for _, h := range p.Hosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
		// a bare label such as "ebay" matches every regional domain
		if !strings.Contains(h, ".") && slices.Contains(labels, h) {
			return true
		}
	}
	return false
}

// IsDetailURL reports whether link has the profile's detail-page shape
func (p *Profile) IsDetailURL(link string) bool {
	return p.detailShape != nil && p.detailShape.MatchString(link)
}
