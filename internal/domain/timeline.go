package domain

import "time"

// TimelineEvent описывает событие в жизненном цикле заказа.
// Лента событий — аудиторный след, а не источник состояния.
type TimelineEvent struct {
	OrderID string
	Type    string
	// Reason — человекочитаемое пояснение (какая позиция, какой переход).
	Reason   string
	Occurred time.Time
}
