package region

import "strings"

// Profile carries the dialect hint and opening line used to seed a
// dialogue session for a contact's locale.
type Profile struct {
	Dialect  string
	Greeting string
}

type tableEntry struct {
	key     string
	profile Profile
}

// Entries are matched as substrings against the contact's city and
// province. Longer keys win so "cebu city" beats "cebu".
var profileTable = []tableEntry{
	{key: "cebu city", profile: Profile{Dialect: "Cebuano", Greeting: "Maayong adlaw! Kumusta ka?"}},
	{key: "cebu", profile: Profile{Dialect: "Cebuano", Greeting: "Maayong adlaw!"}},
	{key: "davao", profile: Profile{Dialect: "Davaoeño", Greeting: "Maayong adlaw diri sa Davao!"}},
	{key: "iloilo", profile: Profile{Dialect: "Hiligaynon", Greeting: "Maayong adlaw sa imo!"}},
	{key: "bacolod", profile: Profile{Dialect: "Hiligaynon", Greeting: "Kamusta ka na?"}},
	{key: "pampanga", profile: Profile{Dialect: "Kapampangan", Greeting: "Mayap a aldo keka!"}},
	{key: "ilocos", profile: Profile{Dialect: "Ilocano", Greeting: "Naimbag nga aldaw!"}},
	{key: "bicol", profile: Profile{Dialect: "Bikolano", Greeting: "Marhay na aldaw saimo!"}},
	{key: "batangas", profile: Profile{Dialect: "Batangueño Tagalog", Greeting: "Magandang araw po, ala eh!"}},
	{key: "manila", profile: Profile{Dialect: "Taglish", Greeting: "Magandang araw po!"}},
	{key: "quezon city", profile: Profile{Dialect: "Taglish", Greeting: "Magandang araw po!"}},
}

// DefaultProfile is returned when no table entry matches the locale.
var DefaultProfile = Profile{Dialect: "Taglish", Greeting: "Magandang araw po!"}

// Resolve maps a contact's city/province to a dialect profile.
// The most specific (longest) matching table key wins; unknown
// locales fall back to the generic Taglish default.
func Resolve(city, province string) Profile {
	haystack := strings.ToLower(strings.TrimSpace(city) + " " + strings.TrimSpace(province))
	best := -1
	out := DefaultProfile
	for _, e := range profileTable {
		if strings.Contains(haystack, e.key) && len(e.key) > best {
			best = len(e.key)
			out = e.profile
		}
	}
	return out
}
