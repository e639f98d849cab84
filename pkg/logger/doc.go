// Package logger builds the structured slog logger shared by every gstats
// component: JSON in prod, text elsewhere, tagged with the environment.
package logger
