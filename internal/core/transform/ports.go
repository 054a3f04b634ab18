package transform

import "context"

// Transformer is the opaque XSLT engine collaborator: input XML plus a
// named stylesheet produce output XML. The engine itself lives outside
// this service; only the interface is specified here.
type Transformer interface {
	Transform(ctx context.Context, source []byte, stylesheet string) ([]byte, error)
}

// Renderer is the document-rendering collaborator that turns an
// intermediate XML and a template name into a PDF. The external rendering
// service implements it over HTTP; a local fallback renderer implements
// it in-process.
type Renderer interface {
	Render(ctx context.Context, source []byte, template string) ([]byte, error)
}
