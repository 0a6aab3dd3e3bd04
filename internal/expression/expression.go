// Package expression picks the avatar expression shown while a reply is
// spoken.
//
// Detection is a plain ordered keyword scan over the lowercased reply text:
// the first category with any matching keyword wins, so earlier categories
// take precedence when keywords overlap ("amazing" is love, not surprised).
package expression

import "strings"

// Expression names as they appear on the wire.
const (
	Sad       = "sad"
	Love      = "love"
	Laughing  = "laughing"
	Surprised = "surprised"
	Confused  = "confused"
	Excited   = "excited"
	Happy     = "happy"
	Wink      = "wink"
)

// Default is returned when no keyword matches.
const Default = Happy

// rule maps trigger keywords to one expression.
type rule struct {
	expression string
	keywords   []string
}

// rules is evaluated in order; first match wins.
var rules = []rule{
	{Sad, []string{"sorry", "unfortunately", "sad", "bad news", "can't", "unable"}},
	{Love, []string{"love", "heart", "❤", "💕", "amazing", "wonderful"}},
	{Laughing, []string{"haha", "lol", "funny", "😂", "🤣", "hilarious", "joke"}},
	{Surprised, []string{"wow", "whoa", "incredible", "!!"}},
	{Confused, []string{"hmm", "interesting", "let me think", "not sure", "maybe"}},
	{Excited, []string{"great", "awesome", "perfect", "excellent", "yay", "🎉"}},
	{Happy, []string{"good", "nice", "sure", "okay", "happy", "😊", "🙂"}},
	{Wink, []string{";)", "wink", "heh", "between us"}},
	{Excited, []string{"🦞", "lobster"}},
}

// Detect returns the expression matching the reply text, or [Default] when
// nothing matches.
func Detect(text string) string {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.expression
			}
		}
	}
	return Default
}
