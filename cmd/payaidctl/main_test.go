package main

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"
	"time"

	"payaid/internal/authn"
	"payaid/internal/statutory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGSTINValidate(t *testing.T) {
	out, err := execute(t, "gstin", "validate", "27aapfu0939f1zv")
	require.NoError(t, err)
	assert.Equal(t, "27AAPFU0939F1ZV valid (state 27)\n", out)

	_, err = execute(t, "gstin", "validate", "27AAPFU0939F1ZA")
	assert.Error(t, err)
}

func TestPayrollPreviewConvertsRupees(t *testing.T) {
	out, err := execute(t, "payroll", "preview",
		"--basic", "30000", "--hra", "12000", "--special", "8000",
		"--state", "MH", "--month", "4")
	require.NoError(t, err)

	var slip statutory.Payslip
	require.NoError(t, json.Unmarshal([]byte(out), &slip))
	assert.Equal(t, time.April, slip.Month)
	assert.Equal(t, int64(5000000), slip.Gross)
	assert.Equal(t, slip.Gross-slip.TotalDeductions, slip.NetPay)
	assert.Equal(t, statutory.RegimeNew, slip.TDS.Regime)
	assert.Equal(t, int64(20000), slip.ProfessionalTax)
}

func TestPayrollPreviewSummary(t *testing.T) {
	out, err := execute(t, "payroll", "preview", "--basic", "15000", "--month", "1", "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "January payslip")
	assert.Contains(t, out, "Net pay")
	assert.Contains(t, out, "₹")
}

func TestPayrollPreviewRejectsBadRegime(t *testing.T) {
	_, err := execute(t, "payroll", "preview", "--basic", "15000", "--regime", "flat", "--month", "1")
	assert.ErrorIs(t, err, statutory.ErrInvalidRegime)
}

func TestTokenIssue(t *testing.T) {
	t.Setenv("JWT_SECRET", "dev-secret")
	t.Setenv("JWT_ISSUER", "payaid-auth")

	out, err := execute(t, "token", "issue",
		"--tenant", "11111111-1111-1111-1111-111111111111",
		"--user", "22222222-2222-2222-2222-222222222222",
		"--role", authn.RoleHR, "--ttl", "5m")
	require.NoError(t, err)

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)

	principal, err := authn.NewTokenManager([]byte("dev-secret"), "payaid-auth", time.Minute).Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", principal.TenantID)
	assert.Equal(t, authn.RoleHR, principal.Role)
	assert.False(t, principal.SuperAdmin)
}

func TestTokenIssueRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := execute(t, "token", "issue", "--tenant", "t", "--user", "u")
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLicenseGrantValidation(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	tenantID := "11111111-1111-1111-1111-111111111111"

	expiresAt, err := grantInput{TenantID: tenantID, Module: "hr", Expires: "2027-03-31"}.validate(now)
	require.NoError(t, err)
	require.NotNil(t, expiresAt)
	assert.Equal(t, time.Date(2027, 3, 31, 23, 59, 59, 0, time.UTC), *expiresAt)

	expiresAt, err = grantInput{TenantID: tenantID, Module: "finance"}.validate(now)
	require.NoError(t, err)
	assert.Nil(t, expiresAt)

	_, err = grantInput{TenantID: tenantID, Module: "payroll"}.validate(now)
	assert.ErrorContains(t, err, "unknown module")
	_, err = grantInput{TenantID: "nope", Module: "hr"}.validate(now)
	assert.Error(t, err)
	_, err = grantInput{TenantID: tenantID, Module: "hr", Expires: "2026-03-01"}.validate(now)
	assert.ErrorContains(t, err, "future")
}

func TestTenantInputNormalize(t *testing.T) {
	in := tenantInput{
		Name:          " Acme Traders ",
		Slug:          "Acme",
		GSTIN:         "29aagcb7383j1z4",
		Status:        "active",
		AdminEmail:    "Owner@Acme.in",
		AdminPassword: "long-enough",
	}
	require.NoError(t, in.normalize())
	assert.Equal(t, "acme", in.Slug)
	assert.Equal(t, "29", in.StateCode)
	assert.Equal(t, "owner@acme.in", in.AdminEmail)

	bad := in
	bad.AdminPassword = "short"
	assert.Error(t, bad.normalize())

	bad = in
	bad.Status = "suspended"
	assert.Error(t, bad.normalize())
}

func TestLicenseListRequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	_, err := execute(t, "license", "list", "--tenant", "11111111-1111-1111-1111-111111111111")
	assert.ErrorContains(t, err, "DSN")
}
