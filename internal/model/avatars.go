package model

// CharacterEmojis is the fixed set of avatars handed out by the random-character query
var CharacterEmojis = []string{
	"🧚‍♀️", "🧚‍♂️", "👨‍🌾", "👩‍🌾", "🧙‍♀️", "🧙‍♂️",
	"👨‍🎨", "👩‍🎨", "🧝‍♀️", "🧝‍♂️", "👨‍💼", "👩‍💼",
}
