// Package model provides typed views of the records in the catalog.
//
// The generic record layer stores fields as a map checked against the
// schema. The types here give command handlers ordinary struct access:
// BoardFrom(rec).Label rather than rec.String("label"), and Data() to turn a
// struct back into an assignable field map.
package model

import (
	"fmt"
	"strings"

	"github.com/roach88/boardstore/internal/record"
	"github.com/roach88/boardstore/internal/repo"
	"github.com/roach88/boardstore/internal/schema"
)

// Record type names.
const (
	TypeSettings = "settings"
	TypeTheme    = "theme"
	TypeBoard    = "board"
	TypeGroup    = "group"
	TypeItem     = "item"
)

// Item variants.
const (
	VariantLabel   = "label"
	VariantURL     = "url"
	VariantNote    = "note"
	VariantYoutube = "youtube"
)

// Register registers every catalog type with r.
func Register(r *repo.Repository) error {
	types, err := schema.LoadCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	return r.Register(types...)
}

// Board is a top-level container of groups.
type Board struct {
	ID    string
	Icon  string
	Label string
}

// BoardFrom reads a board record.
func BoardFrom(rec *record.Record) Board {
	return Board{ID: rec.ID(), Icon: rec.String("icon"), Label: rec.String("label")}
}

// Data returns the assignable fields.
func (b Board) Data() map[string]any {
	return map[string]any{"icon": b.Icon, "label": b.Label}
}

// Title is the label prefixed with the icon, if any.
func (b Board) Title() string {
	if b.Icon == "" {
		return b.Label
	}
	return b.Icon + " " + b.Label
}

// Group is a list of items inside a board.
type Group struct {
	ID     string
	Rel    string
	Label  string
	Marked bool // show unmarked items only
}

// GroupFrom reads a group record.
func GroupFrom(rec *record.Record) Group {
	return Group{
		ID:     rec.ID(),
		Rel:    rec.Rel(),
		Label:  rec.String("label"),
		Marked: rec.Bool("marked"),
	}
}

// Data returns the assignable fields.
func (g Group) Data() map[string]any {
	return map[string]any{"rel": g.Rel, "label": g.Label, "marked": g.Marked}
}

// Item is an entry in a group.
type Item struct {
	ID      string `json:"id"`
	Rel     string `json:"rel"`
	Label   string `json:"label"`
	Marked  bool   `json:"marked"`
	Variant string `json:"variant"`
	Amount  int64  `json:"amount"`
	Note    string `json:"note,omitempty"`
	URL     string `json:"url,omitempty"`
	Youtube string `json:"youtube,omitempty"`
}

// ItemFrom reads an item record.
func ItemFrom(rec *record.Record) Item {
	return Item{
		ID:      rec.ID(),
		Rel:     rec.Rel(),
		Label:   rec.String("label"),
		Marked:  rec.Bool("marked"),
		Variant: rec.String("variant"),
		Amount:  rec.Int("amount"),
		Note:    rec.String("note"),
		URL:     rec.String("url"),
		Youtube: rec.String("youtube"),
	}
}

// Data returns the assignable fields.
func (it Item) Data() map[string]any {
	return map[string]any{
		"rel":     it.Rel,
		"label":   it.Label,
		"marked":  it.Marked,
		"variant": it.Variant,
		"amount":  it.Amount,
		"note":    it.Note,
		"url":     it.URL,
		"youtube": it.Youtube,
	}
}

// Link returns the item's target for url and youtube variants, else "".
func (it Item) Link() string {
	switch it.Variant {
	case VariantURL:
		return it.URL
	case VariantYoutube:
		if it.Youtube == "" {
			return ""
		}
		return "https://www.youtube.com/watch?v=" + it.Youtube
	}
	return ""
}

// Settings is the singleton layout configuration.
type Settings struct {
	InterfaceSize     string
	ShowOrderControls bool
	BoardColumns      int64
	GroupColumns      int64
	GroupColumnsMax   int64
	ItemColumns       int64
	ItemColumnsMax    int64
	ItemColumnsMaxMax int64
	DefaultVariant    string
	ExclusiveMaximize bool
	EasyHideModals    bool
	ItemShowNote      string
	ItemShowYoutube   string
	ModalYoutubeWidth int64
}

// SettingsFrom reads a settings record.
func SettingsFrom(rec *record.Record) Settings {
	return Settings{
		InterfaceSize:     rec.String("interfaceSize"),
		ShowOrderControls: rec.Bool("showOrderControls"),
		BoardColumns:      rec.Int("boardColumns"),
		GroupColumns:      rec.Int("groupColumns"),
		GroupColumnsMax:   rec.Int("groupColumnsMax"),
		ItemColumns:       rec.Int("itemColumns"),
		ItemColumnsMax:    rec.Int("itemColumnsMax"),
		ItemColumnsMaxMax: rec.Int("itemColumnsMaxMax"),
		DefaultVariant:    rec.String("defaultVariant"),
		ExclusiveMaximize: rec.Bool("exclusiveMaximize"),
		EasyHideModals:    rec.Bool("easyHideModals"),
		ItemShowNote:      rec.String("itemShowNote"),
		ItemShowYoutube:   rec.String("itemShowYoutube"),
		ModalYoutubeWidth: rec.Int("modalYoutubeWidth"),
	}
}

// Data returns the assignable fields.
func (s Settings) Data() map[string]any {
	return map[string]any{
		"interfaceSize":     s.InterfaceSize,
		"showOrderControls": s.ShowOrderControls,
		"boardColumns":      s.BoardColumns,
		"groupColumns":      s.GroupColumns,
		"groupColumnsMax":   s.GroupColumnsMax,
		"itemColumns":       s.ItemColumns,
		"itemColumnsMax":    s.ItemColumnsMax,
		"itemColumnsMaxMax": s.ItemColumnsMaxMax,
		"defaultVariant":    s.DefaultVariant,
		"exclusiveMaximize": s.ExclusiveMaximize,
		"easyHideModals":    s.EasyHideModals,
		"itemShowNote":      s.ItemShowNote,
		"itemShowYoutube":   s.ItemShowYoutube,
		"modalYoutubeWidth": s.ModalYoutubeWidth,
	}
}

// Color is a theme colour with its opacity in percent.
type Color struct {
	Hex     string
	Opacity int64
}

// Theme is the singleton colour scheme. Colors is keyed by field name,
// e.g. "modalColorHeaderText".
type Theme struct {
	Name   string
	Colors map[string]Color
}

// opacitySuffix names the companion field of a colour field.
const opacitySuffix = "Opacity"

// ThemeFrom reads a theme record.
func ThemeFrom(rec *record.Record) Theme {
	th := Theme{Name: rec.String("theme"), Colors: make(map[string]Color)}
	for _, f := range rec.Schema().Fields {
		if f.Kind != schema.KindColor {
			continue
		}
		th.Colors[f.Name] = Color{
			Hex:     rec.String(f.Name),
			Opacity: rec.Int(f.Name + opacitySuffix),
		}
	}
	return th
}

// Data returns the assignable fields.
func (th Theme) Data() map[string]any {
	out := map[string]any{"theme": th.Name}
	for name, c := range th.Colors {
		out[name] = c.Hex
		out[name+opacitySuffix] = c.Opacity
	}
	return out
}

// RGBA renders the colour as a CSS rgba() value.
func (c Color) RGBA() (string, error) {
	hex := strings.TrimPrefix(c.Hex, "#")
	if len(hex) != 6 {
		return "", fmt.Errorf("colour %q is not #rrggbb", c.Hex)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return "", fmt.Errorf("colour %q: %w", c.Hex, err)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", r, g, b, float64(c.Opacity)/100), nil
}
