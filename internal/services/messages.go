package services

// User-facing message texts. Everything the bot says is Russian; the board it
// serves is a Russian-language channel.
const (
	msgGreeting = "Привет, %s! Выбери действие:"
	msgMenu     = "Выбери действие:"

	msgNotAuthenticated = "Вы не авторизованы. Нажмите /start, чтобы начать."
	msgPhoneRequired    = "Чтобы подать объявление, поделитесь номером телефона."
	msgUsernameRequired = "Чтобы подать объявление, установите имя пользователя (username) в настройках Telegram. Без него покупатели не смогут с вами связаться."
	msgPhoneSaved       = "Номер сохранён. Выбери действие:"

	msgAskTitle        = "Напишите заголовок объявления."
	msgAskDescription  = "Теперь напишите описание."
	msgAskPrice        = "Укажите цену в рублях (целое число)."
	msgEchoTitle       = "<b>Заголовок:</b> %s"
	msgEchoDescription = "<b>Описание:</b> %s"
	msgEchoPrice       = "<b>Цена:</b> %s руб."
	msgEchoCategory    = "<b>Категория:</b> %s"
	msgBadPrice        = "Цена должна быть целым неотрицательным числом. Попробуйте ещё раз."
	msgTitleTooLong    = "Слишком длинный заголовок, сократите его до %d символов."
	msgDescTooLong     = "Слишком длинное описание, сократите его до %d символов."
	msgAskCategory     = "Выберите категорию:"
	msgAskPhotos       = "Пришлите фотографии, не более %d штук, или пропустите этот шаг."
	msgPhotoLimit      = "Слишком много фотографий: максимум %d. Пришлите альбом поменьше."
	msgUseButtons      = "Пожалуйста, воспользуйтесь кнопками ниже."
	msgConfirmPreview  = "Так будет выглядеть ваше объявление. Опубликовать?"
	msgSubmitted       = "Объявление отправлено на проверку. После одобрения модератором оно появится в канале."
	msgCancelled       = "Действие отменено."

	msgNotModerator = "Эта команда доступна только модераторам."
	msgAdGone       = "Объявление не найдено. Возможно, оно уже удалено."
	msgNotOwner     = "Это объявление принадлежит другому пользователю."

	msgReviewRequest = "Новое объявление. Одобрить публикацию?"
	msgAskReason     = "Напишите причину отклонения."
	msgReasonSent    = "Комментарий отправлен автору."
	msgApprovedMod   = "Объявление опубликовано."
	msgAlreadyTaken  = "Это объявление уже обработал другой модератор."
	msgNoPending     = "Объявлений на проверке нет."

	msgApprovedOwner  = "Ваше объявление одобрено и опубликовано в канале."
	msgRejectedOwner  = "Ваше объявление отклонено. Комментарий модератора: %s"
	msgWithdrawn      = "Объявление снято с публикации."
	msgCannotWithdraw = "Это объявление сейчас не опубликовано."
	msgNoOwnAds       = "У вас нет опубликованных объявлений."
	msgOwnAdActions   = "Управление объявлением:"

	msgOperatorReport = "Ошибка в боте (chat %d): %v"
	msgUserApology    = "Произошла ошибка. Пожалуйста, попробуйте ещё раз или нажмите /start."
)
