package validators

import "agenda/pkg/model"

var ResourceValidator = document(
	[]string{"tenant_id", "name", "price_per_hour", "status", "created_at"},
	map[string]any{
		"_id":            objectID(),
		"tenant_id":      nonEmpty(),
		"name":           bounded(3, 100),
		"description":    bounded(0, 500),
		"price_per_hour": number(0),
		"status":         oneOf(string(model.ResourceAvailable), string(model.ResourceOccupied), string(model.ResourceMaintenance)),
		"created_at":     date(),
	},
)

var ClientValidator = document(
	[]string{"tenant_id", "full_name", "phone", "created_at"},
	map[string]any{
		"_id":        objectID(),
		"tenant_id":  nonEmpty(),
		"full_name":  bounded(2, 100),
		"phone":      matching(`^\+[1-9][0-9]{6,14}$`), // E.164, normalized on write
		"email":      text(),
		"tax_id":     matching(`^[0-9]{11}$`),
		"created_at": date(),
	},
)
