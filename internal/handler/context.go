package handler

type ContextKey string

var (
	ActorCtxKey ContextKey = "actor"
	ShiftCtx    ContextKey = "shift"
)
