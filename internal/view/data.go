package view

import (
	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Base assembles the TemplateData shared by every rendered page.
func Base(title string, eff *auth.EffectiveUser, degraded bool, csrfToken, currentPath string, flash *shared.FlashMessage) TemplateData {
	data := TemplateData{
		Title:           title,
		CSRFToken:       csrfToken,
		CurrentPath:     currentPath,
		Flash:           flash,
		DegradedCabinet: degraded,
	}
	if eff != nil {
		data.UserID = eff.ID
		data.Role = eff.Role
		data.IsQAOverride = eff.IsQAOverride
		data.ImpersonatedBy = eff.ImpersonatorAdminID
	}
	return data
}
