package rate

import "time"

// Limit es un presupuesto (max hits por ventana) para una clase de operación.
type Limit struct {
	Max    int64
	Window time.Duration
}

// Presupuestos por defecto por clase de operación.
// Los valores reales vienen de config; estos son los fallback.
var (
	LimitReceipts = Limit{Max: 30, Window: time.Minute}
	LimitReports  = Limit{Max: 10, Window: time.Minute}
	LimitOCR      = Limit{Max: 20, Window: time.Minute}
	LimitAuth     = Limit{Max: 5, Window: 15 * time.Minute}
	LimitAPI      = Limit{Max: 120, Window: time.Minute}
)

// UserKey compone la clave de limiting por usuario + ruta lógica.
// Formato: user:<id>:<route>
func UserKey(userID, route string) string {
	return "user:" + userID + ":" + route
}

// IPKey compone la clave de limiting por IP + ruta lógica.
// Formato: ip:<addr>:<route>
func IPKey(addr, route string) string {
	return "ip:" + addr + ":" + route
}
