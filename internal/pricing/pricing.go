// Package pricing computes booking totals.
package pricing

import "dogsitter/internal/models"

// Quote is the price breakdown of a booking.
type Quote struct {
	Days          int          `json:"days"`
	DailyAnimals  models.Money `json:"daily_animals"`
	AnimalsTotal  models.Money `json:"animals_total"`
	ServicesTotal models.Money `json:"services_total"`
	Total         models.Money `json:"total"`
}

// Calculate returns days × Σ sitter rate per animal size + Σ service prices.
// Service prices are charged once per booking, not per day.
func Calculate(sitter *models.DogSitter, animals []models.BookingAnimal, services []models.Service, days int) Quote {
	if days < 0 {
		days = 0
	}

	var daily models.Money
	for _, a := range animals {
		daily += sitter.DailyRate(a.Size)
	}

	var extras models.Money
	for _, s := range services {
		extras += s.Price
	}

	animalsTotal := daily.Mul(days)
	return Quote{
		Days:          days,
		DailyAnimals:  daily,
		AnimalsTotal:  animalsTotal,
		ServicesTotal: extras,
		Total:         animalsTotal + extras,
	}
}
