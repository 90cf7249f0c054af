package market

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Candle 是一根原始 K 线（RawBar）。追加后不可变。
type Candle struct {
	Symbol string    `json:"symbol"`
	ID     int64     `json:"id"`
	Time   time.Time `json:"dt" validate:"required"`
	Open   float64   `json:"open" validate:"gt=0"`
	High   float64   `json:"high" validate:"gt=0,gtefield=Low"`
	Low    float64   `json:"low" validate:"gt=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume float64   `json:"vol" validate:"gte=0"`
	Amount float64   `json:"amount" validate:"gte=0"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func barValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// Validate 检查价格为正、high>=low、成交量非负。
func (c Candle) Validate() error {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume, c.Amount} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("K 线 %d 含非有限数值", c.ID)
		}
	}
	if c.Time.IsZero() {
		return fmt.Errorf("K 线 %d 缺少时间", c.ID)
	}
	if err := barValidator().Struct(c); err != nil {
		return fmt.Errorf("K 线 %d 字段非法: %w", c.ID, err)
	}
	return nil
}
