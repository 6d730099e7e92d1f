package ordering

import "sync"

// Lock — точка сериализации писателей одного хранилища внутри процесса.
// Движок заказов, сервис статусов и Catalog должны разделять один экземпляр.
type Lock struct {
	mu sync.Mutex
}

// NewLock создаёт Lock.
func NewLock() *Lock {
	return &Lock{}
}

func (l *Lock) Lock() {
	l.mu.Lock()
}

func (l *Lock) Unlock() {
	l.mu.Unlock()
}
