package mail

// Header is one message header, in the order the provider returned it.
type Header struct {
	Name  string
	Value string
}

// Part is a node of a message's MIME tree. Body holds the transfer-decoded
// content and is empty for containers and for parts that could not be decoded.
type Part struct {
	MimeType string
	Body     []byte
	Parts    []Part
}

// Message is a provider message normalized away from any one mailbox API.
type Message struct {
	ID      string
	Headers []Header
	Payload *Part
}

// EmailRecord holds the fields transferred to the sheet.
type EmailRecord struct {
	From    string
	Subject string
	Date    string // as sent by the provider, not reparsed
	Body    string // plain text
}

// Row returns the sheet row for the record: sender, subject, date and the
// body cut to MaxBodyLength characters.
func (r EmailRecord) Row() []string {
	return []string{r.From, r.Subject, r.Date, Truncate(r.Body, MaxBodyLength)}
}
