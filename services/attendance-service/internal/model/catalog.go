package model

import "time"

type Church struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

var churchNames = []string{
	"PUNTO CLAVE", "CENTRO", "SANTA CRUZ", "LAURELES", "CASTILLA", "BELLO", "ANDES",
	"SAN JERÓNIMO", "RIONEGRO", "ITAGÜÍ", "GIRARDOTA", "CHIGORODÓ", "CAREPA", "APARTADÓ",
}

var serviceDays = []string{"DOMINGO", "LUNES", "MARTES", "MIÉRCOLES", "JUEVES", "VIERNES", "SÁBADO"}

var serviceTimes = []string{
	"07:00 AM", "08:00 AM", "09:00 AM", "10:00 AM", "12:00 PM",
	"03:00 PM", "04:00 PM", "05:00 PM", "06:00 PM", "07:00 PM", "08:00 PM",
}

// Catalog is the fixed set of locations, day labels and time slots a record may use.
type Catalog struct {
	Churches []Church `json:"churches"`
	Days     []string `json:"days"`
	Times    []string `json:"times"`
}

func DefaultCatalog() Catalog {
	churches := make([]Church, 0, len(churchNames))
	for i, name := range churchNames {
		churches = append(churches, Church{
			ID:      itoa(i + 1),
			Name:    name,
			Address: "Sede " + titleCase(name),
		})
	}
	return Catalog{
		Churches: churches,
		Days:     append([]string(nil), serviceDays...),
		Times:    append([]string(nil), serviceTimes...),
	}
}

func IsChurch(name string) bool {
	return contains(churchNames, name)
}

func IsServiceTime(slot string) bool {
	return contains(serviceTimes, slot)
}

func IsServiceDay(label string) bool {
	return contains(serviceDays, label)
}

// IsValidDate accepts a day label or an ISO calendar date.
func IsValidDate(v string) bool {
	if IsServiceDay(v) {
		return true
	}
	_, err := time.Parse(time.DateOnly, v)
	return err == nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
