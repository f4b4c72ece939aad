package data

type ResultsCache interface {
	Get(key string) (Record, error)
	GetStatus(key string) (JobStatus, error)
	SetStatusProcessing(key string, token Token) error
	SaveResult(key string, token Token, value Result) error
	SaveFailure(key string, token Token, reason string) error
}
