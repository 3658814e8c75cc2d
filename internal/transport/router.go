package transport

import (
	"github.com/sirupsen/logrus"
)

// Router despacha mensagens de saída tentando os canais de entrega em ordem
// estrita de prioridade, parando no primeiro sucesso. O chamador recebe
// apenas um booleano agregado: nenhum detalhe sobre quais canais foram
// tentados é exposto.
type Router struct {
	channels []DeliveryChannel
	log      *logrus.Entry
}

// newRouter cria um roteador com a lista ordenada de canais informada.
// Canais nil são ignorados.
func newRouter(channels ...DeliveryChannel) *Router {
	ordered := make([]DeliveryChannel, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			ordered = append(ordered, ch)
		}
	}
	return &Router{
		channels: ordered,
		log:      logrus.WithField("componente", "roteador"),
	}
}

// Send tenta entregar o payload pelo primeiro canal viável. Falhas de canal
// são registradas e tratadas como "tentar o próximo canal"; nunca são
// propagadas. Retorna false se nenhum canal aceitou a entrega.
func (r *Router) Send(payload []byte) bool {
	for _, ch := range r.channels {
		if !ch.Available() {
			continue
		}

		ok, err := ch.Send(payload)
		if err != nil {
			r.log.WithError(err).WithField("canal", ch.Name()).
				Warn("erro ao enviar pelo canal, tentando o próximo")
			continue
		}
		if ok {
			return true
		}
	}

	return false
}
