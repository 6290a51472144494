// Auto-moderation decision engine for chat guilds.
//
// This package (`github.com/HolyFlex-tecjh/Axion.github.io-sub004/automod`) decides, for each user-generated event (a message, or a member joining), whether it violates the guild's moderation policy and what to do about it. Independent filters (spam, duplicates, toxicity, links, banned words, caps, mentions) produce findings; the strongest finding becomes a candidate action; the user's recent violation count then escalates that action through the guild's configured tiers. Time-bounded actions (timeouts, temporary bans) are handed to a scheduler which emits a reversal when they expire.
//
// The engine makes no platform calls itself: the bot's platform adapter executes each Decision. See `cmd/automod` for a daemon built on this package.
package automod
