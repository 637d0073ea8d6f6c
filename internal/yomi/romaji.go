package yomi

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Mora is one syllable unit of Japanese.
type Mora struct {
	ID   string
	Kana string
}

// moraData lists each mora with its katakana form and the romaji spellings
// accepted for it (Hepburn and Kunrei). A ':' marks how much of the input
// the spelling consumes: "k:k" reads the first k of "kk" as ッ.
var moraData = []struct {
	id     string
	kana   string
	inputs []string
}{
	{".a", "ア", []string{"a"}},
	{".i", "イ", []string{"i"}},
	{".u", "ウ", []string{"u", "wu"}},
	{".e", "エ", []string{"e"}},
	{".o", "オ", []string{"o"}},

	{"ka", "カ", []string{"ka", "ca"}},
	{"ki", "キ", []string{"ki"}},
	{"ku", "ク", []string{"ku"}},
	{"ke", "ケ", []string{"ke"}},
	{"ko", "コ", []string{"ko"}},

	{"sa", "サ", []string{"sa"}},
	{"si", "シ", []string{"si", "shi"}},
	{"su", "ス", []string{"su"}},
	{"se", "セ", []string{"se"}},
	{"so", "ソ", []string{"so"}},

	{"ta", "タ", []string{"ta"}},
	{"ti", "チ", []string{"chi", "ci", "ti"}},
	{"tu", "ツ", []string{"tsu", "tu"}},
	{"te", "テ", []string{"te"}},
	{"to", "ト", []string{"to"}},

	{"na", "ナ", []string{"na"}},
	{"ni", "ニ", []string{"ni"}},
	{"nu", "ヌ", []string{"nu"}},
	{"ne", "ネ", []string{"ne"}},
	{"no", "ノ", []string{"no"}},

	{"ha", "ハ", []string{"ha"}},
	{"hi", "ヒ", []string{"hi"}},
	{"hu", "フ", []string{"hu", "fu"}},
	{"he", "ヘ", []string{"he"}},
	{"ho", "ホ", []string{"ho"}},

	{"ma", "マ", []string{"ma"}},
	{"mi", "ミ", []string{"mi"}},
	{"mu", "ム", []string{"mu"}},
	{"me", "メ", []string{"me"}},
	{"mo", "モ", []string{"mo"}},

	{"ya", "ヤ", []string{"ya"}},
	{"yu", "ユ", []string{"yu"}},
	{"ye", "イェ", []string{"ye"}},
	{"yo", "ヨ", []string{"yo"}},

	{"ra", "ラ", []string{"ra"}},
	{"ri", "リ", []string{"ri"}},
	{"ru", "ル", []string{"ru"}},
	{"re", "レ", []string{"re"}},
	{"ro", "ロ", []string{"ro"}},

	{"wa", "ワ", []string{"wa"}},
	{"wi", "ウィ", []string{"whi", "wi"}},
	{"we", "ウェ", []string{"whe", "we"}},
	{"wo", "ウォ", []string{"xwo"}},
	{"Wi", "ヰ", []string{"xwi"}},
	{"We", "ヱ", []string{"xwe"}},
	{"Wo", "ヲ", []string{"wo"}},

	{".n", "ン", []string{"n", "n'", "m:p", "nn"}},

	{"xW", "ァ", []string{"xa", "la"}},
	{"xI", "ィ", []string{"xi", "li"}},
	{"xV", "ゥ", []string{"xu", "lu"}},
	{"xE", "ェ", []string{"xe", "le"}},
	{"xR", "ォ", []string{"xo", "lo"}},
	{"xA", "ャ", []string{"xya", "lya"}},
	{"xU", "ュ", []string{"xyu", "lyu"}},
	{"xO", "ョ", []string{"xyo", "lyo"}},

	{"!v", "゛", nil},
	{"!p", "゜", nil},
	{"!.", "。", []string{"."}},
	{"!,", "、", []string{","}},
	{"!_", "・", []string{"x."}},
	{"![", "「", []string{"["}},
	{"!]", "」", []string{"]"}},

	{".-", "ー", []string{"-"}},

	{".t", "ッ", []string{"xtu", "ltu",
		"k:k", "s:s", "t:t", "h:h", "f:f", "m:m", "r:r", "p:p",
		"g:g", "z:z", "j:j", "d:d", "b:b", "v:v", "b:c", "t:c"}},

	{"ga", "ガ", []string{"ga"}},
	{"gi", "ギ", []string{"gi"}},
	{"gu", "グ", []string{"gu"}},
	{"ge", "ゲ", []string{"ge"}},
	{"go", "ゴ", []string{"go"}},

	{"za", "ザ", []string{"za"}},
	{"zi", "ジ", []string{"ji", "zi"}},
	{"zu", "ズ", []string{"zu"}},
	{"ze", "ゼ", []string{"ze"}},
	{"zo", "ゾ", []string{"zo"}},

	{"da", "ダ", []string{"da"}},
	{"di", "ヂ", []string{"dzi", "di"}},
	{"du", "ヅ", []string{"dzu", "du"}},
	{"de", "デ", []string{"de"}},
	{"do", "ド", []string{"do"}},

	{"ba", "バ", []string{"ba"}},
	{"bi", "ビ", []string{"bi"}},
	{"bu", "ブ", []string{"bu"}},
	{"be", "ベ", []string{"be"}},
	{"bo", "ボ", []string{"bo"}},

	{"pa", "パ", []string{"pa"}},
	{"pi", "ピ", []string{"pi"}},
	{"pu", "プ", []string{"pu"}},
	{"pe", "ペ", []string{"pe"}},
	{"po", "ポ", []string{"po"}},

	{"KA", "キャ", []string{"kya"}},
	{"KU", "キュ", []string{"kyu"}},
	{"KE", "キェ", []string{"kye"}},
	{"KO", "キョ", []string{"kyo"}},

	{"kA", "クァ", []string{"qa"}},
	{"kI", "クィ", []string{"qi"}},
	{"kE", "クェ", []string{"qe"}},
	{"kO", "クォ", []string{"qo"}},

	{"SA", "シャ", []string{"sya", "sha"}},
	{"SU", "シュ", []string{"syu", "shu"}},
	{"SE", "シェ", []string{"sye", "she"}},
	{"SO", "ショ", []string{"syo", "sho"}},

	{"CA", "チャ", []string{"tya", "cya", "cha"}},
	{"CU", "チュ", []string{"tyu", "cyu", "chu"}},
	{"CE", "チェ", []string{"tye", "cye", "che"}},
	{"CO", "チョ", []string{"tyo", "cyo", "cho"}},
	{"TI", "ティ", []string{"tyi", "thi"}},
	{"TU", "テュ", []string{"thu"}},
	{"TO", "トゥ", []string{"tho"}},

	{"NA", "ニャ", []string{"nya"}},
	{"NU", "ニュ", []string{"nyu"}},
	{"NI", "ニェ", []string{"nye"}},
	{"NO", "ニョ", []string{"nyo"}},

	{"HA", "ヒャ", []string{"hya"}},
	{"HU", "ヒュ", []string{"hyu"}},
	{"HE", "ヒェ", []string{"hye"}},
	{"HO", "ヒョ", []string{"hyo"}},

	{"FA", "ファ", []string{"fa"}},
	{"FI", "フィ", []string{"fi"}},
	{"FE", "フェ", []string{"fe"}},
	{"FO", "フォ", []string{"fo"}},
	{"FU", "フュ", []string{"fyu"}},
	{"Fo", "フョ", []string{"fyo"}},

	{"MA", "ミャ", []string{"mya"}},
	{"MU", "ミュ", []string{"myu"}},
	{"ME", "ミェ", []string{"mye"}},
	{"MO", "ミョ", []string{"myo"}},

	{"RA", "リャ", []string{"rya"}},
	{"RU", "リュ", []string{"ryu"}},
	{"RE", "リェ", []string{"rye"}},
	{"RO", "リョ", []string{"ryo"}},

	{"GA", "ギャ", []string{"gya"}},
	{"GU", "ギュ", []string{"gyu"}},
	{"GE", "ギェ", []string{"gye"}},
	{"GO", "ギョ", []string{"gyo"}},

	{"Ja", "ジャ", []string{"zya", "ja", "zha"}},
	{"Ju", "ジュ", []string{"zyu", "ju", "zhu"}},
	{"Je", "ジェ", []string{"zye", "je", "zhe"}},
	{"Jo", "ジョ", []string{"zyo", "jo", "zho"}},

	{"JA", "ヂャ", []string{"dya"}},
	{"JU", "ヂュ", []string{"dyu"}},
	{"JE", "ヂェ", []string{"dye"}},
	{"JO", "ヂョ", []string{"dyo"}},

	{"dI", "ディ", []string{"dyi", "dhi"}},
	{"dU", "デュ", []string{"dhu"}},
	{"dO", "ドゥ", []string{"dho"}},

	{"BA", "ビャ", []string{"bya"}},
	{"BU", "ビュ", []string{"byu"}},
	{"BE", "ビェ", []string{"bye"}},
	{"BO", "ビョ", []string{"byo"}},

	{"va", "ヴァ", []string{"va"}},
	{"vi", "ヴィ", []string{"vi"}},
	{"vu", "ヴ", []string{"vu"}},
	{"ve", "ヴェ", []string{"ve"}},
	{"vo", "ヴォ", []string{"vo"}},

	{"PA", "ピャ", []string{"pya"}},
	{"PU", "ピュ", []string{"pyu"}},
	{"PE", "ピェ", []string{"pye"}},
	{"PO", "ピョ", []string{"pyo"}},
}

type parseEntry struct {
	consume int
	mora    *Mora
}

// parseTable maps every spelling to its mora, and every proper prefix of a
// spelling to nil, so the parser knows when to keep reading.
type parseTable map[string]*parseEntry

func (t parseTable) add(s string, m *Mora, allowConflict bool) {
	if !allowConflict && t[s] != nil {
		panic(fmt.Sprintf("yomi: spelling %q of %s already means %s", s, m.ID, t[s].mora.ID))
	}
	consume := -1
	if i := strings.IndexByte(s, ':'); i >= 0 {
		consume = len([]rune(s[:i]))
		s = strings.ReplaceAll(s, ":", "")
	}
	runes := []rune(s)
	if consume < 0 {
		consume = len(runes)
	}
	for i := 1; i <= len(runes); i++ {
		w := string(runes[:i])
		if i == len(runes) {
			t[w] = &parseEntry{consume: consume, mora: m}
		} else if _, ok := t[w]; !ok {
			t[w] = nil
		}
	}
}

var (
	morae    = map[string]*Mora{}
	official = buildOfficial()
)

func buildOfficial() parseTable {
	t := parseTable{}
	for _, d := range moraData {
		m := &Mora{ID: d.id, Kana: d.kana}
		morae[d.id] = m
		t.add(d.kana, m, true)
		for _, in := range d.inputs {
			t.add(in, m, false)
		}
	}
	return t
}

// Unit is one element of parsed input: a mora, or a character that is not
// part of any mora.
type Unit struct {
	Mora *Mora
	Raw  string
}

// foldInput lowercases romaji, folds fullwidth letters and halfwidth kana,
// joins separate voicing marks to their kana and converts hiragana.
func foldInput(s string) string {
	s = strings.ToLower(width.Fold.String(s))
	s = strings.NewReplacer("\u309b", "\u3099", "\u309c", "\u309a").Replace(s)
	s = norm.NFC.String(s)
	s = strings.NewReplacer("\u3099", "\u309b", "\u309a", "\u309c").Replace(s)
	return ToKatakana(s)
}

// Parse splits romaji or kana input into morae, reading the longest
// spelling at each position.
func Parse(s string) []Unit {
	runes := []rune(foldInput(s))
	var units []Unit
	for i := 0; i < len(runes); {
		consume := 1
		unit := Unit{Raw: string(runes[i])}
		for n := 1; i+n <= len(runes); n++ {
			e, ok := official[string(runes[i:i+n])]
			if !ok {
				break
			}
			if e != nil {
				consume = e.consume
				unit = Unit{Mora: e.mora}
			}
		}
		units = append(units, unit)
		i += consume
	}
	return units
}

// ToKana converts romaji or kana input into katakana. It reports false
// when part of the input is not a mora; those parts are dropped.
func ToKana(s string) (string, bool) {
	var sb strings.Builder
	ok := true
	for _, u := range Parse(s) {
		if u.Mora == nil {
			ok = false
			continue
		}
		sb.WriteString(u.Mora.Kana)
	}
	return sb.String(), ok
}

// CanBeYomi reports whether term spells a reading.
func CanBeYomi(term string) bool {
	if term == "" || strings.HasPrefix(term, ".") {
		return false
	}
	_, ok := ToKana(term)
	return ok
}

// FromTerm returns the encoded reading spelled by term.
func FromTerm(term string) ([]byte, bool) {
	kana, ok := ToKana(term)
	if !ok || kana == "" {
		return nil, false
	}
	y, ok := Encode(kana)
	if !ok {
		return nil, false
	}
	return Canonicalize(y), true
}

// Keys returns the bigram keys of the reading y, the keys an indexed
// sentence must hold for y to match it.
func Keys(y []byte) []string {
	keys := make([]string, 0, len(y))
	seen := make(map[string]struct{}, len(y))
	for i := 1; i < len(y); i++ {
		k := string(y[i-1 : i+1])
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}
