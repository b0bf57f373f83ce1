// refgen выдаёт человекочитаемые номера обращений для сообщений об инцидентах.
//
// Формат: RD-<год из 4 цифр>-<номер 0001..9999 с ведущими нулями>.
// Номер случайный: уникальность «по возможности», без криптостойких гарантий.
package refgen

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"
	"time"
)

// Pattern — регулярное выражение допустимого номера обращения.
var Pattern = regexp.MustCompile(`^RD-\d{4}-\d{4}$`)

// maxSerial — верхняя граница случайной части номера.
const maxSerial = 9999

// Generator — источник номеров обращений.
type Generator interface {
	Next() string
}

// Random — генератор на math/rand/v2 с подменяемыми часами.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// New создаёт генератор со случайным зерном и системными часами.
func New() *Random {
	return &Random{
		rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now: time.Now,
	}
}

// NewSeeded создаёт детерминированный генератор (для тестов).
func NewSeeded(seed uint64, now func() time.Time) *Random {
	if now == nil {
		now = time.Now
	}

	return &Random{
		rnd: rand.New(rand.NewPCG(seed, seed)),
		now: now,
	}
}

// Next возвращает новый номер обращения.
func (g *Random) Next() string {
	g.mu.Lock()
	serial := g.rnd.IntN(maxSerial) + 1
	g.mu.Unlock()

	return Format(g.now().Year(), serial)
}

// Format собирает номер из года и порядкового числа.
// Год ограничивается четырьмя цифрами, число — диапазоном 1..9999.
func Format(year, serial int) string {
	year = min(max(year, 0), 9999)
	serial = min(max(serial, 1), maxSerial)

	return fmt.Sprintf("RD-%04d-%04d", year, serial)
}

// Valid сообщает, соответствует ли строка формату номера обращения.
func Valid(ref string) bool {
	return Pattern.MatchString(ref)
}
