package models

import (
	"time"
)

// DiceWeighting holds a user's die bias, one weight per face. The
// gambling/economy service owns the values; this service only reads them
// and materializes a uniform row on a user's first roll.
type DiceWeighting struct {
	UserID    string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	Dice1     float64   `gorm:"not null;default:0" json:"dice_1"`
	Dice2     float64   `gorm:"not null;default:0" json:"dice_2"`
	Dice3     float64   `gorm:"not null;default:0" json:"dice_3"`
	Dice4     float64   `gorm:"not null;default:0" json:"dice_4"`
	Dice5     float64   `gorm:"not null;default:0" json:"dice_5"`
	Dice6     float64   `gorm:"not null;default:0" json:"dice_6"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Weights returns the six face weights in order.
func (w *DiceWeighting) Weights() [6]float64 {
	return [6]float64{w.Dice1, w.Dice2, w.Dice3, w.Dice4, w.Dice5, w.Dice6}
}

// UniformWeighting is the default row written on first use: a fair die.
func UniformWeighting(userID string) *DiceWeighting {
	p := 1.0 / 6
	return &DiceWeighting{
		UserID: userID,
		Dice1:  p, Dice2: p, Dice3: p,
		Dice4: p, Dice5: p, Dice6: p,
	}
}
