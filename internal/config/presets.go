package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/restnotify/restnotify/internal/payload"
)

// DefaultAgent is the sender name presets put in provider payloads.
const DefaultAgent = "restnotify"

// preset builds the provider defaults from the user's preset inputs.
type preset func(n NotifierConfig) (NotifierConfig, error)

var presets = map[string]preset{
	"slack":    slackPreset,
	"discord":  discordPreset,
	"teams":    teamsPreset,
	"telegram": telegramPreset,
	"gotify":   gotifyPreset,
	"pushover": pushoverPreset,
	"apprise":  apprisePreset,
	"mastodon": mastodonPreset,
	"generic":  genericPreset,
}

// Presets returns the names of the built-in presets.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// titleOrDefault renders the call-time title, or the agent name when the
// caller did not pass one.
const titleOrDefault = `{{ title|default:"` + DefaultAgent + `" }}`

// --- Slack ---
func slackPreset(n NotifierConfig) (NotifierConfig, error) {
	return NotifierConfig{
		Resource:         n.Resource,
		Method:           MethodPostJSON,
		MessageParamName: "text",
		DataTemplate:     mapping("text", payload.Template{Source: "*" + titleOrDefault + "*\n{{ message }}"}),
	}, nil
}

// --- Discord ---
func discordPreset(n NotifierConfig) (NotifierConfig, error) {
	return NotifierConfig{
		Resource:         n.Resource,
		Method:           MethodPostJSON,
		MessageParamName: "content",
		Data:             mapping("username", payload.Literal{Value: DefaultAgent}),
		DataTemplate:     mapping("content", payload.Template{Source: "**" + titleOrDefault + "**\n{{ message }}"}),
	}, nil
}

// --- Teams ---
func teamsPreset(n NotifierConfig) (NotifierConfig, error) {
	section := mapping(
		"activityTitle", payload.Template{Source: titleOrDefault},
		"activityText", payload.Template{Source: "{{ message }}"},
	)
	return NotifierConfig{
		Resource:         n.Resource,
		Method:           MethodPostJSON,
		MessageParamName: "summary",
		Data: mapping(
			"@type", payload.Literal{Value: "MessageCard"},
			"@context", payload.Literal{Value: "http://schema.org/extensions"},
			"themeColor", payload.Literal{Value: "0076D7"},
		),
		DataTemplate: mapping(
			"summary", payload.Template{Source: titleOrDefault},
			"sections", payload.Sequence{section},
		),
	}, nil
}

// --- Telegram ---
var telegramAPIBase = "https://api.telegram.org"

func telegramPreset(n NotifierConfig) (NotifierConfig, error) {
	if n.Token == "" {
		return NotifierConfig{}, fmt.Errorf("telegram preset requires token")
	}
	p := NotifierConfig{
		Resource:         fmt.Sprintf("%s/bot%s/sendMessage", telegramAPIBase, n.Token),
		Method:           MethodPostJSON,
		MessageParamName: "text",
		TargetParamName:  "chat_id",
		Data:             mapping("parse_mode", payload.Literal{Value: "HTML"}),
		DataTemplate:     mapping("text", payload.Template{Source: "<b>" + titleOrDefault + "</b>\n{{ message }}"}),
	}
	if n.ChatID != "" {
		p.Data.Set("chat_id", payload.Literal{Value: n.ChatID})
	}
	return p, nil
}

// --- Gotify (Self-Hosted Push) ---
func gotifyPreset(n NotifierConfig) (NotifierConfig, error) {
	if n.Server == "" || n.Token == "" {
		return NotifierConfig{}, fmt.Errorf("gotify preset requires server and token")
	}
	return NotifierConfig{
		Resource:         strings.TrimRight(n.Server, "/") + "/message",
		Method:           MethodPostJSON,
		MessageParamName: "message",
		TitleParamName:   "title",
		Headers:          map[string]string{"X-Gotify-Key": n.Token},
		Data:             mapping("priority", payload.Literal{Value: int64(5)}),
	}, nil
}

// --- Pushover (Mobile Push) ---
var pushoverAPIURL = "https://api.pushover.net/1/messages.json"

func pushoverPreset(n NotifierConfig) (NotifierConfig, error) {
	if n.Token == "" || n.UserKey == "" {
		return NotifierConfig{}, fmt.Errorf("pushover preset requires token and user_key")
	}
	return NotifierConfig{
		Resource:         pushoverAPIURL,
		Method:           MethodPost,
		MessageParamName: "message",
		TitleParamName:   "title",
		TargetParamName:  "device",
		Data: mapping(
			"token", payload.Literal{Value: n.Token},
			"user", payload.Literal{Value: n.UserKey},
			"html", payload.Literal{Value: "0"},
		),
	}, nil
}

// --- Apprise (Gateway) ---
func apprisePreset(n NotifierConfig) (NotifierConfig, error) {
	return NotifierConfig{
		Resource:         n.Resource,
		Method:           MethodPostJSON,
		MessageParamName: "body",
		TitleParamName:   "title",
		Data: mapping(
			"format", payload.Literal{Value: "markdown"},
			"type", payload.Literal{Value: "info"},
		),
	}, nil
}

// --- Mastodon ---
func mastodonPreset(n NotifierConfig) (NotifierConfig, error) {
	if n.Server == "" || n.Token == "" {
		return NotifierConfig{}, fmt.Errorf("mastodon preset requires server and token")
	}
	return NotifierConfig{
		Resource:         strings.TrimRight(n.Server, "/") + "/api/v1/statuses",
		Method:           MethodPostJSON,
		MessageParamName: "status",
		Headers:          map[string]string{"Authorization": "Bearer " + n.Token},
		Data:             mapping("visibility", payload.Literal{Value: "private"}),
		DataTemplate:     mapping("status", payload.Template{Source: titleOrDefault + "\n\n{{ message }}"}),
	}, nil
}

// --- Generic Webhook ---
func genericPreset(n NotifierConfig) (NotifierConfig, error) {
	return NotifierConfig{
		Resource:         n.Resource,
		Method:           MethodPostJSON,
		MessageParamName: "message",
		TitleParamName:   "title",
		Data:             mapping("agent", payload.Literal{Value: DefaultAgent}),
	}, nil
}

// applyPreset fills every field the user left unset from the preset.
// Headers and data_types are merged key by key, user keys winning.
func (n *NotifierConfig) applyPreset() error {
	build, ok := presets[strings.ToLower(n.Preset)]
	if !ok {
		return fmt.Errorf("unknown preset %q (known: %s)", n.Preset, strings.Join(Presets(), ", "))
	}
	p, err := build(*n)
	if err != nil {
		return err
	}
	if n.Resource == "" {
		n.Resource = p.Resource
	}
	if n.Method == "" {
		n.Method = p.Method
	}
	if n.MessageParamName == "" {
		n.MessageParamName = p.MessageParamName
	}
	if n.TitleParamName == "" {
		n.TitleParamName = p.TitleParamName
	}
	if n.TargetParamName == "" {
		n.TargetParamName = p.TargetParamName
	}
	if n.Data == nil {
		n.Data = p.Data
	}
	if n.DataTemplate == nil {
		n.DataTemplate = p.DataTemplate
	}
	n.Headers = mergeStrings(p.Headers, n.Headers)
	n.DataTypes = mergeStrings(p.DataTypes, n.DataTypes)
	return nil
}

func mergeStrings(base, over map[string]string) map[string]string {
	if len(base) == 0 {
		return over
	}
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// mapping builds a Mapping from alternating key, node arguments.
func mapping(kv ...any) *payload.Mapping {
	m := payload.NewMapping()
	for i := 0; i+1 < len(kv); i += 2 {
		m.Set(kv[i].(string), kv[i+1].(payload.Node))
	}
	return m
}
