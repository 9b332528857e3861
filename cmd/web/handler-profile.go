package main

import (
	"net/http"

	"github.com/myrjola/cdms/internal/models"
)

type profileTemplateData struct {
	BaseTemplateData
	Profile models.ProfileView
}

func (app *application) profile(w http.ResponseWriter, r *http.Request) {
	identity, _ := caller(r)
	app.render(w, r, http.StatusOK, "profile", profileTemplateData{
		BaseTemplateData: newBaseTemplateData(r, "My Profile"),
		Profile:          models.NewProfileView(identity),
	})
}
