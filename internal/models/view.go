package models

import (
	"html/template"
	"strings"
)

// View is the render instruction for one message. It carries everything a template needs to draw a
// bubble, so templates hold no decisions of their own.
type View struct {
	ElementID   string
	Role        Role
	RowClass    string
	BubbleClass string
	// Avatar is the initial drawn next to assistant bubbles. Empty means no avatar.
	Avatar  string
	Loading bool
	Body    template.HTML
}

const (
	assistantAvatar = "G"

	userRowClass      = "flex w-full justify-end message-animate"
	assistantRowClass = "flex w-full justify-start message-animate"

	userBubbleClass      = "bg-gray-100 text-gray-800 rounded-2xl rounded-tr-none"
	assistantBubbleClass = "bg-transparent text-gray-800"
)

// Render maps a message to its view. It has no side effects: the same message always renders to the
// same view.
//
// User text is escaped and keeps its line breaks. Assistant text is treated as markdown with raw HTML
// disabled. Placeholders render as an avatar plus typing dots and keep their element ID.
func Render(msg Message) View {
	if msg.Loading {
		return View{
			ElementID: msg.ElementID,
			Role:      RoleAssistant,
			RowClass:  assistantRowClass,
			Avatar:    assistantAvatar,
			Loading:   true,
		}
	}

	if msg.Role == RoleUser {
		return View{
			Role:        RoleUser,
			RowClass:    userRowClass,
			BubbleClass: userBubbleClass,
			Body:        plainHTML(msg.Text),
		}
	}

	return View{
		Role:        RoleAssistant,
		RowClass:    assistantRowClass,
		BubbleClass: assistantBubbleClass,
		Avatar:      assistantAvatar,
		Body:        markdownHTML(msg.Text),
	}
}

// RenderAll renders messages in order.
func RenderAll(msgs []Message) []View {
	views := make([]View, len(msgs))
	for i, msg := range msgs {
		views[i] = Render(msg)
	}
	return views
}

func plainHTML(text string) template.HTML {
	escaped := template.HTMLEscapeString(text)
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}
