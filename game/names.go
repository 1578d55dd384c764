package game

import (
	"fmt"
	"math/rand"
)

var nameAdjectives = []string{
	"amber", "bold", "brisk", "clever", "crimson", "daring", "eager",
	"foggy", "gilded", "hasty", "ivory", "jolly", "keen", "lively",
	"mellow", "noble", "plucky", "quick", "rustic", "swift", "vivid",
	"witty",
}

var nameNouns = []string{
	"badger", "bishop", "comet", "falcon", "gannet", "heron", "lynx",
	"magpie", "marmot", "otter", "owl", "pike", "raven", "salmon",
	"sparrow", "stoat", "tavern", "walrus", "wolf", "wren",
}

// generateRoomName produces a human-friendly room name. Uniqueness is not
// required; the room id is the identifier.
func generateRoomName() string {
	adj := nameAdjectives[rand.Intn(len(nameAdjectives))]
	noun := nameNouns[rand.Intn(len(nameNouns))]
	return fmt.Sprintf("%s-%s-%02d", adj, noun, rand.Intn(100))
}
