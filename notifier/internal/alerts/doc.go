// Package alerts turns the source event stream into notifications.
//
// The Engine logs every established connection, renders each alert event
// as "New Alert: <alert_type> in <zone_name>" and hands it to the configured
// presenters (console, Slack, Teams, generic HTTP webhooks, e-mail) one
// after another, in the order the events arrive.
package alerts
