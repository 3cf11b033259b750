package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/healthz":                      "/healthz",
		"/v1/projects/01ABC":            "/v1/projects/:id",
		"/v1/projects/01ABC/members":    "/v1/projects/:id/members",
		"/v1/members/01ABC":             "/v1/members/:id",
		"/v1/accounts/01ABC":            "/v1/accounts/:id",
		"/v1/content/01ABC":             "/v1/content/:id",
		"/v1/auth/login":                "/v1/auth/login",
		"/v1/projects/01ABC?expand=all": "/v1/projects/:id",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
