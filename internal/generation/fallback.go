package generation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/zaqqye/uiflow_backend/internal/models"
)

// Document is the locally known metadata of the parent document.
type Document struct {
	ID    string
	Title string
}

// FallbackFunc produces a ScreenSet without calling the completion service.
type FallbackFunc func(brief string, doc Document) (models.ScreenSet, error)

var fallbackNamespace = uuid.MustParse("6f1c1f0e-7a59-4c55-9df4-2a3c1b5e9a10")

// Fallback builds a sign-in, home and settings screen linked by a three
// step journey. Ids are derived from the document id, so equal input gives
// equal output.
func Fallback(brief string, doc Document) (models.ScreenSet, error) {
	app := strings.TrimSpace(doc.Title)
	if app == "" {
		app = "your app"
	}
	summary := Truncate(firstParagraph(brief), 160)
	if summary == "" {
		summary = "Everything you need, in one place."
	}

	id := func(parts ...string) string {
		return uuid.NewSHA1(fallbackNamespace, []byte(doc.ID+"/"+strings.Join(parts, "/"))).String()
	}
	el := func(screen, key string, t models.ElementType, props map[string]string) models.UiElement {
		return models.NewUiElement(id(screen, key), t, props)
	}

	signIn := models.Screen{
		ID:               id("screen", "sign-in"),
		ParentDocumentID: doc.ID,
		Name:             "Sign In",
		Description:      "Lets a returning user sign in to " + app + ".",
		Elements: []models.UiElement{
			el("sign-in", "logo", models.ElementImage, map[string]string{"description": app + " logo"}),
			el("sign-in", "title", models.ElementText, map[string]string{"content": "Welcome back"}),
			el("sign-in", "email", models.ElementInput, map[string]string{"description": "Email address", "placeholder": "you@example.com"}),
			el("sign-in", "password", models.ElementInput, map[string]string{"description": "Password"}),
			el("sign-in", "submit", models.ElementButton, map[string]string{"content": "Sign in", "action": "navigate:Home"}),
		},
	}
	home := models.Screen{
		ID:               id("screen", "home"),
		ParentDocumentID: doc.ID,
		Name:             "Home",
		Description:      "Landing screen shown after sign in.",
		Elements: []models.UiElement{
			el("home", "header", models.ElementText, map[string]string{"content": app}),
			el("home", "hero", models.ElementImage, map[string]string{"description": "Hero illustration"}),
			el("home", "summary", models.ElementText, map[string]string{"content": summary}),
			el("home", "settings", models.ElementButton, map[string]string{"content": "Settings", "action": "navigate:Settings"}),
		},
	}
	settings := models.Screen{
		ID:               id("screen", "settings"),
		ParentDocumentID: doc.ID,
		Name:             "Settings",
		Description:      "Account and preference settings.",
		Elements: []models.UiElement{
			el("settings", "title", models.ElementText, map[string]string{"content": "Settings"}),
			el("settings", "name", models.ElementInput, map[string]string{"description": "Display name"}),
			el("settings", "signout", models.ElementButton, map[string]string{"content": "Sign out", "action": "navigate:Sign In"}),
		},
	}

	steps := []models.FlowStep{
		{ID: id("step", "0"), Description: "User opens " + app + " and signs in", ScreenID: models.StringPtr(signIn.ID), Position: 0},
		{ID: id("step", "1"), Description: "User lands on the home screen", ScreenID: models.StringPtr(home.ID), Position: 1},
		{ID: id("step", "2"), Description: "User reviews account settings", ScreenID: models.StringPtr(settings.ID), Position: 2},
	}
	return models.ScreenSet{
		Screens: []models.Screen{signIn, home, settings},
		AppFlow: models.AppFlow{ID: id("flow"), ParentDocumentID: doc.ID, Steps: steps},
		Source:  models.SourceFallback,
	}, nil
}

func firstParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}
