// Package canned holds the fixed assistant replies used when no model is
// available, both by the offline client and by the mock backend.
package canned

import "math/rand/v2"

var responses = []string{
	"Based on the relevant trademark laws, I can provide you with the following guidance on this matter.",
	"That's a great question. In the context of intellectual property law, there are several important considerations to keep in mind.",
	"I'd be happy to help with that. Here's what you need to know about IP protection in this jurisdiction.",
	"According to the latest regulatory framework, the process involves the following steps:\n\n1. Filing an application with the relevant authority\n2. Examination of the application\n3. Publication for opposition\n4. Registration and issuance of certificate",
	"To protect your brand effectively, I recommend considering both trademark registration and trade dress protection. Would you like me to elaborate on either of these?",
	"The filing requirements vary by jurisdiction. Could you specify which country or region you're interested in so I can provide more targeted guidance?",
}

// Responses returns a copy of the reply pool.
func Responses() []string {
	out := make([]string, len(responses))
	copy(out, responses)
	return out
}

// Pick draws uniformly from the reply pool.
func Pick() string {
	return responses[rand.IntN(len(responses))]
}

// Contains reports whether s is one of the pool's replies.
func Contains(s string) bool {
	for _, r := range responses {
		if r == s {
			return true
		}
	}
	return false
}
