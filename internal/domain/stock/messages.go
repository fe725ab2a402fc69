package stock

import (
	"errors"
	"fmt"
	"strings"
)

// Message возвращает текст для сотрудника склада (испанский, как в интерфейсе).
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		whErr    *WarehouseNotFoundError
		prodErr  *ProductNotFoundError
		typeErr  *NoPickingTypeError
		locErr   *NoDefaultSourceLocationError
		sameErr  *SameWarehouseError
		shortErr *InsufficientStockError
		lineErr  *InvalidLineInputError
		costErr  *InvalidCostInputError
		partErr  *PartialCompletionError
		rcErr    *RemoteCallError
	)
	switch {
	case errors.As(err, &whErr):
		return fmt.Sprintf("El almacén '%s' no existe.", whErr.Name)
	case errors.As(err, &prodErr):
		return fmt.Sprintf("El producto con referencia '%s' no existe.", prodErr.Code)
	case errors.As(err, &typeErr):
		if typeErr.Type == KindInternal {
			return fmt.Sprintf("No se encontró un tipo de transferencia interna para '%s'. Revise la configuración del almacén en Odoo.", typeErr.Warehouse)
		}
		return fmt.Sprintf("No se encontró un tipo de recepción para '%s'. Revise la configuración del almacén en Odoo.", typeErr.Warehouse)
	case errors.As(err, &locErr):
		return "No hay una ubicación de proveedor configurada en Odoo."
	case errors.As(err, &sameErr):
		return fmt.Sprintf("El almacén de origen y destino no pueden ser el mismo ('%s').", sameErr.Name)
	case errors.As(err, &shortErr):
		var b strings.Builder
		fmt.Fprintf(&b, "No hay suficiente stock en '%s':", shortErr.Warehouse)
		for _, l := range shortErr.Lines {
			fmt.Fprintf(&b, "\n• '%s': requerido %s, disponible %s", l.Code, formatQty(l.Requested), formatQty(l.Available))
		}
		return b.String()
	case errors.As(err, &lineErr):
		return fmt.Sprintf("Línea inválida para '%s': %s.", lineErr.Code, lineErr.Reason)
	case errors.As(err, &costErr):
		return "Costo o cantidad inválida."
	case errors.As(err, &partErr):
		ref := partErr.Reference
		if ref == "" {
			ref = fmt.Sprintf("ID %d", partErr.PickingID)
		}
		if partErr.State == StateCancel {
			return fmt.Sprintf("La transferencia %s fue cancelada en Odoo y no se completará.", ref)
		}
		return fmt.Sprintf("La transferencia %s quedó en estado '%s'. Es posible que necesite completarla manualmente en Odoo.", ref, partErr.State)
	case errors.As(err, &rcErr):
		if rcErr.Kind() == KindAuthenticationExpired {
			return "La sesión con Odoo no es válida. Contacte al administrador."
		}
		return fmt.Sprintf("Error de comunicación con Odoo (%s): %s", rcErr.Operation, rcErr.Detail)
	}
	return fmt.Sprintf("Error inesperado: %v", err)
}

func formatQty(q float64) string {
	if q == float64(int64(q)) {
		return fmt.Sprintf("%d", int64(q))
	}
	return fmt.Sprintf("%.2f", q)
}
