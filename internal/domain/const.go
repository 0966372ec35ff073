package domain

type ctxKey string

// ActorCtxKey carries the authenticated Actor through a request context.
const ActorCtxKey ctxKey = "tracker-actor"
