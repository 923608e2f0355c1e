package validators

import "agenda/pkg/model"

var ReservationValidator = document(
	[]string{"tenant_id", "resource_id", "client_id", "start_time", "end_time", "status", "is_recurring", "created_at"},
	map[string]any{
		"_id":                        objectID(),
		"tenant_id":                  nonEmpty(),
		"resource_id":                hexID(),
		"client_id":                  hexID(),
		"start_time":                 date(),
		"end_time":                   date(),
		"status":                     oneOf(string(model.StatusConfirmed), string(model.StatusPending), string(model.StatusCancelled)),
		"is_recurring":               boolean(),
		"recurring_group_id":         text(),
		"external_calendar_event_id": text(),
		"created_at":                 date(),
		"updated_at":                 date(),
	},
)

var RecurringGroupValidator = document(
	[]string{"tenant_id", "resource_id", "client_id", "frequency", "start_date", "end_date", "created_at"},
	map[string]any{
		"tenant_id":   nonEmpty(),
		"resource_id": hexID(),
		"client_id":   hexID(),
		"frequency":   oneOf(string(model.FrequencyWeekly), string(model.FrequencyMonthly)),
		"day_of_week": integer(0, 6),
		"start_date":  date(),
		"end_date":    date(),
		"created_at":  date(),
	},
)

// Lock ids are derived from the resource id, not ObjectIDs.
var ReservationLockValidator = document(
	[]string{"_id", "owner", "expires_at"},
	map[string]any{
		"_id":          nonEmpty(),
		"owner":        nonEmpty(),
		"expires_at":   date(),
		"confirmed_at": date(),
	},
)
