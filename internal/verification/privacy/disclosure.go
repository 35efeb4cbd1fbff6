package privacy

// Purpose scopes which attributes a disclosure request asks for.
type Purpose string

const (
	PurposeIdentity Purpose = "identity"
	PurposeLocality Purpose = "locality"
)

const (
	NamespaceMDL       = "org.iso.18013.5.1"
	NamespaceReference = "org.civitas.reference.1"

	// DocTypeMDL is the mobile driving licence document type.
	DocTypeMDL = "org.iso.18013.5.1.mDL"
	// FormatMDoc is the only credential format requested.
	FormatMDoc = "mdoc"
)

// Element identifiers requested from the wallet.
const (
	ElementDocumentNumber          = "document_number"
	ElementDocumentType            = "document_type"
	ElementNationality             = "nationality"
	ElementBirthYear               = "age_birth_year"
	ElementReferenceDocumentNumber = "reference_document_number"
	ElementReferenceDocumentType   = "reference_document_type"
	ElementPostalCode              = "resident_postal_code"
	ElementCity                    = "resident_city"
	ElementRegion                  = "resident_state"
)

// Field is one requested data element.
type Field struct {
	Namespace      string `json:"namespace"`
	Name           string `json:"name"`
	IntentToRetain bool   `json:"intentToRetain"`
}

// Retention states how long the verifier keeps disclosed values.
type Retention struct {
	Days int `json:"days"`
}

// Selector narrows the credential and elements the wallet is asked for.
type Selector struct {
	Format    []string  `json:"format"`
	Retention Retention `json:"retention"`
	DocType   string    `json:"doctype"`
	Fields    []Field   `json:"fields"`
}

// DisclosureRequest is sent to the holder's wallet to start a mobile
// credential presentation.
type DisclosureRequest struct {
	Selector        Selector `json:"selector"`
	Nonce           string   `json:"nonce"`
	ReaderPublicKey string   `json:"readerPublicKey"`
}

var purposeFields = map[Purpose][]Field{
	PurposeIdentity: {
		{Namespace: NamespaceMDL, Name: ElementDocumentNumber},
		{Namespace: NamespaceReference, Name: ElementDocumentType},
		{Namespace: NamespaceMDL, Name: ElementNationality},
		{Namespace: NamespaceMDL, Name: ElementBirthYear},
		{Namespace: NamespaceReference, Name: ElementReferenceDocumentNumber},
		{Namespace: NamespaceReference, Name: ElementReferenceDocumentType},
	},
	PurposeLocality: {
		{Namespace: NamespaceMDL, Name: ElementPostalCode},
		{Namespace: NamespaceMDL, Name: ElementCity},
		{Namespace: NamespaceMDL, Name: ElementRegion},
	},
}

// NewDisclosureRequest builds the minimal request for purposes. Every field
// is requested without intent to retain and with zero-day retention.
func NewDisclosureRequest(nonce, readerPublicKey string, purposes ...Purpose) DisclosureRequest {
	var fields []Field
	seen := make(map[Purpose]bool, len(purposes))
	for _, p := range purposes {
		if seen[p] {
			continue
		}
		seen[p] = true
		for _, f := range purposeFields[p] {
			f.IntentToRetain = false
			fields = append(fields, f)
		}
	}
	return DisclosureRequest{
		Selector: Selector{
			Format:    []string{FormatMDoc},
			Retention: Retention{Days: 0},
			DocType:   DocTypeMDL,
			Fields:    fields,
		},
		Nonce:           nonce,
		ReaderPublicKey: readerPublicKey,
	}
}
