// Package chore implements the recurrence scheduling and persistence engine
// behind chorebot's reminders.
//
// It is composed of:
//   - Translate: human-friendly recurrence descriptions -> canonical Schedule
//   - Store: the durable snapshot of the active reminder set
//   - Engine: one armed cron entry per reminder, with the bi-weekly and
//     monthly first-week date gates
//   - FormatSchedule: canonical Schedule -> display phrase
//   - Registry: the facade composing the above
package chore
