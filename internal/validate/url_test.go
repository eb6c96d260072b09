package validate

import "testing"

func TestValidateICSURL(t *testing.T) {
	cases := []struct {
		url     string
		wantErr bool
	}{
		{"https://calendar.proton.me/abc/xyz.ics", false},
		{"http://example.com/x.ics", true},
		{"https://localhost/x.ics", true},
		{"https://10.0.0.1/x.ics", true},
		{"https://172.16.5.5/x.ics", true},
		{"https://192.168.1.1/x.ics", true},
		{"https://127.0.0.1/x.ics", true},
		{"", true},
		{"not a url at all", true},
		{"https:///x.ics", true},
	}

	for _, c := range cases {
		err := ValidateICSURL(c.url)
		if c.wantErr && err == nil {
			t.Errorf("ValidateICSURL(%q): expected error, got nil", c.url)
		}
		if !c.wantErr && err != nil {
			t.Errorf("ValidateICSURL(%q): unexpected error: %v", c.url, err)
		}
	}
}
