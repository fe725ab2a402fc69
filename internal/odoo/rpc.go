package odoo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kolo/xmlrpc"
)

// endpoint — один XML-RPC сервис Odoo (/xmlrpc/2/common или /xmlrpc/2/object).
// Каждый вызов — отдельный HTTP-запрос с ctx, поэтому вызовы идут параллельно,
// а отмена ctx обрывает и соединение, и ожидание ответа.
type endpoint struct {
	url  string
	http *http.Client
}

// remoteFault — fault из ответа; вызывающий превращает его в *FaultError со своей моделью и методом.
type remoteFault struct{ msg string }

func (f *remoteFault) Error() string { return f.msg }

func (e endpoint) call(ctx context.Context, method string, params ...any) (any, error) {
	body, err := xmlrpc.EncodeMethodCall(method, params...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml")

	resp, err := e.http.Do(req)
	if err != nil {
		// ctx.Err() в цепочке: запрос мог дойти до сервера, результат неизвестен
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request error: bad status code - %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	raw := xmlrpc.Response(data)
	if err := raw.Err(); err != nil {
		var fe xmlrpc.FaultError
		if errors.As(err, &fe) {
			return nil, &remoteFault{msg: fe.String}
		}
		return nil, fmt.Errorf("decode fault: %w", err)
	}
	var reply any
	if err := raw.Unmarshal(&reply); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return reply, nil
}

// asFault переводит fault сервера в *FaultError, остальные ошибки оборачивает префиксом model.method.
func asFault(model, method string, err error) error {
	var rf *remoteFault
	if errors.As(err, &rf) {
		return newFault(model, method, rf.msg)
	}
	return fmt.Errorf("%s.%s: %w", model, method, err)
}
