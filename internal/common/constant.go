package common

// UserIDHeaderName is the HTTP header carrying the opaque, pre-validated
// owner identifier on every request.
const UserIDHeaderName = "UserId"
