// Package format renders booleans, numbers and dates for display in a sheet,
// following a BCP 47 locale such as "pt-BR".
//
// A Formatter without a locale is an identity formatter: booleans become
// "true"/"false", numbers their shortest decimal form and dates are returned
// as received.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/ar"
	"github.com/go-playground/locales/de_DE"
	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/es_ES"
	"github.com/go-playground/locales/fr_FR"
	"github.com/go-playground/locales/it_IT"
	"github.com/go-playground/locales/ja_JP"
	"github.com/go-playground/locales/pt_BR"
	"github.com/go-playground/locales/ru_RU"
	"github.com/go-playground/locales/zh"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// maxFractionDigits matches the default precision of ECMAScript's
// Intl.NumberFormat, which earlier sheets were rendered with.
const maxFractionDigits = 3

type localeData struct {
	yes, no    string
	translator func() locales.Translator
}

var supported = map[string]localeData{
	"ar-AR": {"نعم", "لا", ar.New},
	"de-DE": {"Ja", "Nein", de_DE.New},
	"en-US": {"Yes", "No", en_US.New},
	"es-ES": {"Sí", "No", es_ES.New},
	"fr-FR": {"Oui", "Non", fr_FR.New},
	"it-IT": {"Sì", "No", it_IT.New},
	"ja-JP": {"はい", "いいえ", ja_JP.New},
	"pt-BR": {"Sim", "Não", pt_BR.New},
	"ru-RU": {"Да", "Нет", ru_RU.New},
	"zh-CN": {"是", "否", zh.New},
}

// supportedTags is ordered so the matcher's fallback (index 0) is en-US.
var supportedTags = []string{"en-US", "ar-AR", "de-DE", "es-ES", "fr-FR", "it-IT", "ja-JP", "pt-BR", "ru-RU", "zh-CN"}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(supportedTags))
	for i, s := range supportedTags {
		tags[i] = language.MustParse(s)
	}
	return language.NewMatcher(tags)
}()

// Formatter renders values for one locale. The zero value is an identity
// formatter.
type Formatter struct {
	locale     string
	tag        language.Tag
	data       *localeData
	translator locales.Translator
	printer    *message.Printer
	location   *time.Location
}

var _ n2s.Formatter = (*Formatter)(nil)

// New creates a Formatter for locale, rendering times in loc (UTC if nil).
// An empty locale yields an identity formatter. A locale that cannot be
// parsed is an error; a valid but unsupported one keeps identity booleans and
// dates and still groups numbers per its own conventions. Booleans are
// localized only for the exact tags in the yes/no table.
func New(locale string, loc *time.Location) (*Formatter, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := &Formatter{locale: locale, location: loc}
	if locale == "" {
		return f, nil
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parsing locale %q: %w", locale, err)
	}
	f.tag = tag
	f.printer = message.NewPrinter(tag)

	// Dates follow the closest supported locale; yes/no words only an
	// exact one.
	if _, idx, conf := matcher.Match(tag); conf >= language.High {
		data := supported[supportedTags[idx]]
		f.translator = data.translator()
		if tag.String() == supportedTags[idx] {
			f.data = &data
		}
	}
	return f, nil
}

// Locale returns the locale the formatter was created with.
func (f *Formatter) Locale() string { return f.locale }

// Localized reports whether numbers are grouped for a locale.
func (f *Formatter) Localized() bool { return f.printer != nil }

// FormatBoolean renders v as the locale's yes/no words.
func (f *Formatter) FormatBoolean(v bool) string {
	if f.data == nil {
		return strconv.FormatBool(v)
	}
	if v {
		return f.data.yes
	}
	return f.data.no
}

// FormatNumber renders v with locale grouping and up to three fraction digits.
func (f *Formatter) FormatNumber(v float64) string {
	if f.printer == nil {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return f.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(maxFractionDigits)))
}

// FormatDate renders an ISO-8601 date or date-time. Values without a time of
// day render as a date only. Unparseable input is returned unchanged.
func (f *Formatter) FormatDate(iso string) string {
	if f.translator == nil || iso == "" {
		return iso
	}

	t, dateOnly, ok := parseISO(iso)
	if !ok {
		return iso
	}
	if dateOnly {
		return f.translator.FmtDateShort(t)
	}

	// Midnight UTC is how Notion encodes a date without a time.
	u := t.UTC()
	if u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 {
		return f.translator.FmtDateShort(u)
	}
	t = t.In(f.location)
	return f.translator.FmtDateShort(t) + " " + f.translator.FmtTimeMedium(t)
}

func parseISO(s string) (time.Time, bool, bool) {
	if !strings.Contains(s, "T") {
		t, err := time.Parse(time.DateOnly, s)
		return t, true, err == nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	return t, false, err == nil
}
