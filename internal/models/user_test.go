package models

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Grace Hopper", "Grace H."},
		{"  Ada   King  Lovelace ", "Ada L."},
		{"Plato", "Plato"},
		{"Émile Ñúñez", "Émile Ñ."},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := (User{Name: tt.name}).DisplayName(); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
