package game

import (
	"sync"

	"github.com/google/uuid"
)

type Idgen struct {
	ids    map[string]struct{}
	locker sync.Mutex
}

func NewIdGen() Idgen {
	return Idgen{ids: make(map[string]struct{})}
}

func (idgen *Idgen) Generate() string {
	idgen.locker.Lock()
	defer idgen.locker.Unlock()
	id := uuid.NewString()
	for _, taken := idgen.ids[id]; taken; _, taken = idgen.ids[id] {
		id = uuid.NewString()
	}
	idgen.ids[id] = struct{}{}
	return id
}

func (idgen *Idgen) Dispose(id string) {
	idgen.locker.Lock()
	defer idgen.locker.Unlock()
	delete(idgen.ids, id)
}
