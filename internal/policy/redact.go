package policy

// RedactCredential masks a bearer token for logs and the admin API,
// keeping a short prefix so distinct queues stay distinguishable.
func RedactCredential(credential string) string {
	const keep = 4
	if credential == "" {
		return ""
	}
	if len(credential) <= keep {
		return "****"
	}
	return credential[:keep] + "****"
}
