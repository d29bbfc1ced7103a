package tokenizer

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"lowercases and splits", "Space Marines, ALIENS!", []string{"space", "marines", "aliens"}},
		{"drops stop words", "the crew of a ship", []string{"crew", "ship"}},
		{"drops single characters", "a b c x-ray", []string{"ray"}},
		{"keeps digits and underscores", "agent 007 snake_case", []string{"agent", "007", "snake_case"}},
		{"no stemming", "running heists", []string{"running", "heists"}},
		{"keeps precomposed accents", "caf\u00e9 noir", []string{"caf\u00e9", "noir"}},
		{"splits on combining marks", "cafe\u0301 noir", []string{"cafe", "noir"}},
		{"keeps numeric symbols", "mc\u00b2 \u00bd\u00bd", []string{"mc\u00b2", "\u00bd\u00bd"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tok := range Tokenize(tt.in) {
				got = append(got, tok.Term)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizePositions(t *testing.T) {
	tokens := Tokenize("the heist of the century goes wrong")
	for i, tok := range tokens {
		if tok.Position != i {
			t.Errorf("token %q: expected position %d, got %d", tok.Term, i, tok.Position)
		}
	}
}

func TestAnalyzeBigrams(t *testing.T) {
	got := Analyze("A detective hunts the serial killer")
	want := []string{"detective", "hunts", "serial", "killer", "detective hunts", "hunts serial", "serial killer"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Analyze = %v, want %v", got, want)
	}
	if got := Analyze("the and of"); got != nil {
		t.Errorf("expected no terms, got %v", got)
	}
}

func BenchmarkAnalyze(b *testing.B) {
	text := "A thief who steals corporate secrets through the use of dream-sharing " +
		"technology is given the inverse task of planting an idea into the mind of a C.E.O. " +
		"Crime Thriller Science Fiction"
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Analyze(text)
	}
}
