package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/rbac"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderForbiddenReasonLabels(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	tests := []struct {
		reason string
		want   string
	}{
		{"admin.only", "только администратору"},
		{"office.only", "только сотрудникам правления"},
		{"cabinet.only", "только жителям"},
		{"", "Доступ ограничен."},
		{"made.up", "Доступ ограничен."},
	}
	for _, tc := range tests {
		t.Run(tc.reason, func(t *testing.T) {
			rec := httptest.NewRecorder()
			data := Base("Доступ ограничен", nil, false, "", "/forbidden", nil)
			data.Data = map[string]string{"Reason": tc.reason, "Next": "/office", "Src": "office"}
			require.NoError(t, engine.Render(rec, "pages/forbidden.html", data))
			assert.Contains(t, rec.Body.String(), tc.want)
			assert.Contains(t, rec.Body.String(), `data-page="forbidden"`)
		})
	}
}

func TestRenderLoginCarriesNext(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	data := Base("Вход", nil, false, "", "/login", nil)
	data.Data = map[string]string{"Next": "/cabinet/billing"}
	require.NoError(t, engine.Render(rec, "pages/login.html", data))
	assert.Contains(t, rec.Body.String(), `data-next="/cabinet/billing"`)
}

func TestRenderHeaderShowsEffectiveUserBadges(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	eff := &auth.EffectiveUser{ID: "u-admin", Role: rbac.RoleAdmin, IsQAOverride: true}
	data := Base("Портал СНТ", eff, false, "tok", "/", nil)
	require.NoError(t, engine.Render(rec, "pages/landing.html", data))
	assert.Contains(t, rec.Body.String(), "QA-режим")
	assert.Contains(t, rec.Body.String(), `data-role="admin"`)
}
