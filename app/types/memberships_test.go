package types

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func bindContext(t *testing.T, method, path, body string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestUseSubscriptionRequestBindAndValidate(t *testing.T) {
	ctx := bindContext(t, "POST", "/subscriptions/use",
		`{"organization_id":1,"code":"  MBR-AB12  ","item":{"name":"espresso","category":"coffee","price_cents":350},"quantity":2,"cashier":"till-1"}`)

	req, err := NewUseSubscriptionRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if req.Code != "MBR-AB12" {
		t.Errorf("code = %q, want trimmed", req.Code)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	req.Code = ""
	if err := req.Validate(); err == nil {
		t.Error("expected error for missing code")
	}
}

func TestValidateSubscriptionRequestRequiresOrganization(t *testing.T) {
	ctx := bindContext(t, "POST", "/subscriptions/validate", `{"code":"MBR-AB12"}`)

	req, err := NewValidateSubscriptionRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for missing organization_id")
	}
}

func TestCreateSubscriptionRequestStartDateFormat(t *testing.T) {
	ctx := bindContext(t, "POST", "/subscriptions",
		`{"organization_id":1,"customer_id":2,"template_id":3,"start_date":"yesterday"}`)

	req, err := NewCreateSubscriptionRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for non-RFC3339 start_date")
	}

	req.StartDate = "2024-06-01T00:00:00Z"
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestCreateTemplateRequestAllowedHours(t *testing.T) {
	base := `{"organization_id":1,"name":"Coffee Pass","kind":"daily","duration_value":30,"duration_unit":"days"`

	ctx := bindContext(t, "POST", "/templates", base+`,"allowed_hours_from":"09:00"}`)
	req, err := NewCreateTemplateRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for a half-open hours window")
	}

	ctx = bindContext(t, "POST", "/templates", base+`,"allowed_hours_from":"09:00","allowed_hours_to":"25:99"}`)
	req, err = NewCreateTemplateRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := req.Validate(); err == nil {
		t.Error("expected error for an invalid clock time")
	}

	ctx = bindContext(t, "POST", "/templates", base+`,"allowed_hours_from":"09:00","allowed_hours_to":"17:30"}`)
	req, err = NewCreateTemplateRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestParseMinuteOfDay(t *testing.T) {
	minute, err := ParseMinuteOfDay("17:30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if minute != 17*60+30 {
		t.Errorf("minute = %d, want 1050", minute)
	}
	if got := FormatMinuteOfDay(minute); got != "17:30" {
		t.Errorf("round trip = %q, want 17:30", got)
	}

	if _, err := ParseMinuteOfDay("9am"); err == nil {
		t.Error("expected error for non HH:MM input")
	}
}

func TestParseOrganizationID(t *testing.T) {
	ctx := bindContext(t, "GET", "/stats?organization_id=12", "")
	id, err := ParseOrganizationID(ctx)
	if err != nil || id != 12 {
		t.Errorf("got %d/%v, want 12", id, err)
	}

	ctx = bindContext(t, "GET", "/stats", "")
	if _, err := ParseOrganizationID(ctx); err == nil {
		t.Error("expected error for missing organization_id")
	}
}
