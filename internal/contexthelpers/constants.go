package contexthelpers

type contextKey string

const identityContextKey = contextKey("identity")
const currentPathContextKey = contextKey("currentPath")
const csrfTokenContextKey = contextKey("csrfToken")
const cspNonceContextKey = contextKey("cspNonce")
