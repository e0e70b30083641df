package language

import "testing"

func TestFromCode(t *testing.T) {
	tests := []struct {
		code     string
		wantCode string
		wantName string
	}{
		{"en", "en", "English"},
		{"es", "es", "Spanish"},
		{"zh", "zh", "Chinese"},
		{"invalid", "", "Auto-detect"},
		{"", "", "Auto-detect"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := FromCode(tt.code)
			if got.Code != tt.wantCode {
				t.Errorf("FromCode(%q).Code = %q, want %q", tt.code, got.Code, tt.wantCode)
			}
			if got.Name != tt.wantName {
				t.Errorf("FromCode(%q).Name = %q, want %q", tt.code, got.Name, tt.wantName)
			}
		})
	}
}

func TestNativeName(t *testing.T) {
	if got := FromCode("en").NativeName; got != "English" {
		t.Errorf("FromCode(en).NativeName = %q, want English", got)
	}
	if got := FromCode("de").NativeName; got != "Deutsch" {
		t.Errorf("FromCode(de).NativeName = %q, want Deutsch", got)
	}
}

func TestIsValidCode(t *testing.T) {
	tests := map[string]bool{
		"en":      true,
		"es":      true,
		"zh":      true,
		"":        true,
		"invalid": false,
		"xyz":     false,
	}
	for code, want := range tests {
		if got := IsValidCode(code); got != want {
			t.Errorf("IsValidCode(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestListSortedAndComplete(t *testing.T) {
	list := List()
	if len(list) != len(codes) {
		t.Fatalf("List() has %d entries, want %d", len(list), len(codes))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Errorf("not sorted: %q before %q", list[i-1].Name, list[i].Name)
		}
	}
	list[0].Name = "mutated"
	if List()[0].Name == "mutated" {
		t.Error("List() must return a copy")
	}
}
