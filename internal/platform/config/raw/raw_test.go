package raw

import "testing"

func TestConfGet(t *testing.T) {
	t.Setenv("APP_NAME", " obsledger ")
	t.Setenv("ACCT_GAP_THRESHOLD_SEC", " 300 ")

	root := New()
	acct := root.Prefix("ACCT_")

	if got := root.Get("APP_NAME", "x"); got != "obsledger" {
		t.Fatalf("Get = %q, want obsledger", got)
	}
	if got := acct.Get("GAP_THRESHOLD_SEC", "x"); got != "300" {
		t.Fatalf("prefixed Get = %q, want 300", got)
	}
	if got := acct.Get("MISSING", "defv"); got != "defv" {
		t.Fatalf("missing Get = %q, want defv", got)
	}
}

func TestConfGetInt(t *testing.T) {
	t.Setenv("ACCT_GAP_THRESHOLD_SEC", "300")
	t.Setenv("ACCT_BAD", "3x0")

	acct := New().Prefix("ACCT_")
	if got := acct.GetInt("GAP_THRESHOLD_SEC", 1); got != 300 {
		t.Fatalf("GetInt = %d, want 300", got)
	}
	if got := acct.GetInt("BAD", 7); got != 7 {
		t.Fatalf("GetInt bad value = %d, want default 7", got)
	}
	if got := acct.GetInt("ABSENT", 5); got != 5 {
		t.Fatalf("GetInt absent = %d, want default 5", got)
	}
}

func TestConfGetBool(t *testing.T) {
	t.Setenv("LOG_CALLER", "yes")
	t.Setenv("LOG_SQL", "off")

	lc := New().Prefix("LOG_")
	if !lc.GetBool("CALLER", false) {
		t.Fatalf("GetBool yes = false, want true")
	}
	if lc.GetBool("SQL", true) {
		t.Fatalf("GetBool off = true, want false")
	}
	if !lc.GetBool("ABSENT", true) {
		t.Fatalf("GetBool absent should return default")
	}
}
